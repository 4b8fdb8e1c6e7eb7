// Package valkey implements storage.Index on Valkey or Redis with the search
// module.
//
// Each course is a hash under {prefix}course:{id} carrying the vector as a
// little-endian float32 blob, the denormalized course fields and the content
// hash. The embedder tag lives in the {prefix}meta hash. Nearest-neighbor
// queries run FT.SEARCH KNN over an HNSW cosine index with a difficulty TAG
// used as a pre-filter:
//
//	(@difficulty:{BEGINNER|INTERMEDIATE})=>[KNN 15 @vector $BLOB]
//
// The FT index is created on the first write, once the vector dimension is
// known.
package valkey
