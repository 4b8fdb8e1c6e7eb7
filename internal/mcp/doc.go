// Package mcp implements the Model Context Protocol (MCP) server for skillcourse.
//
// The MCP server exposes four tools to AI assistants:
//   - recommend_courses: Recommend courses for one skill
//   - recommend_for_skills: Recommend courses for several missing skills
//   - sync_index: Bring the embedding index in step with the catalog
//   - get_index_status: Compare the index with the catalog
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so they never interleave with protocol messages on stdout.
//
// # Tool: recommend_courses
//
//	Request:
//	{
//	  "name": "recommend_courses",
//	  "arguments": {
//	    "skill": "Docker",
//	    "top_n": 3,
//	    "level": "débutant",
//	    "context": "backend developer"
//	  }
//	}
//
//	Response:
//	{
//	  "skill": "Docker",
//	  "backend": "index",
//	  "widened": false,
//	  "count": 1,
//	  "recommendations": [
//	    {
//	      "course_id": "c1",
//	      "title": "Docker Fundamentals",
//	      "score_similarite": 82.4,
//	      "score_semantique": 71.1,
//	      "score_lexical": 99.3,
//	      "level_exact": true
//	    }
//	  ]
//	}
//
// An empty recommendation list is a valid answer, not an error. When the
// exact-level results score below the quality threshold the search widens to
// adjacent levels and "widened" is true.
//
// # Tool: recommend_for_skills
//
//	{"name": "recommend_for_skills", "arguments": {"skills": ["Docker", "SQL"], "per_skill": 3}}
//
// Each recommendation carries the skill it matched. A course may appear once
// per skill. Skills that fail are listed under "failed"; the call fails only
// when every skill fails.
//
// # Tool: sync_index
//
//	{"name": "sync_index", "arguments": {"force": false}}
//
// Runs synchronously and returns sync statistics. force resets the index,
// which is required after switching embedders.
//
// # Error Handling
//
// Errors are returned as MCPError values:
//
//	-32602  invalid parameters (missing skill, top_n out of range)
//	-32603  internal error
//	-32001  catalog or embedder unavailable
//	-32002  a sync is already running
//	-32003  index built by another embedder; sync with force
package mcp
