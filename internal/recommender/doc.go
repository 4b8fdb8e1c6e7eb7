// Package recommender ranks catalog courses for a skill.
//
// A recommendation call embeds an enriched query text once, picks a Backend
// (the embedding index when it is populated by the running embedder, brute
// force otherwise) and runs LevelFallbackSearch over it:
//
//	NO_LEVEL  no declared level: one unfiltered retrieval
//	EXACT     best exact-level hybrid score >= 60: exact-level results only
//	WIDENED   otherwise: exact-level results plus alternative levels
//
// Candidates are scored as
//
//	hybrid = 0.6*semantic + 0.4*lexical
//
// and ranked by hybrid plus a 15 point bonus for exact-level candidates. The
// bonus orders results but is never reported.
//
// # Basic Usage
//
//	svc, err := recommender.NewService(db, db, emb, recommender.Config{})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	resp, err := svc.Recommend(ctx, types.Query{Skill: "Docker", Level: "debutant"})
//	for _, r := range types.NewRecommendations(resp.Results) {
//	    fmt.Println(r.Title, r.ScoreSimilarite)
//	}
package recommender
