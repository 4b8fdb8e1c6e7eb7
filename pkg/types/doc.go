// Package types provides the domain types shared by the skillcourse components.
//
// # Courses
//
// Course is the catalog record recommended to learners. Its Difficulty is always
// one of the canonical values; raw catalog strings are normalized once when
// courses enter the system:
//
//	course := types.Course{
//	    ID:         "coursera-ml-101",
//	    Title:      "Machine Learning Foundations",
//	    Difficulty: types.NormalizeDifficulty("Débutant"), // BEGINNER
//	}
//
// # Levels
//
// A Level is what the learner declares. ParseLevel accepts English and French
// aliases with or without accents, and each Level knows its exact catalog
// difficulty and the alternatives searched when exact matches are weak:
//
//	level, ok := types.ParseLevel("Expert")
//	level.Exact()        // ADVANCED
//	level.Alternatives() // [INTERMEDIATE]
//
// # Scores
//
// ScoredCandidate carries the semantic, lexical and hybrid scores of a course
// for a single recommendation call. All scores lie in [0, 100]. Recommendation
// is the outward shape of a candidate returned by the API surfaces.
package types
