package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var levelProperty = map[string]interface{}{
	"type":        "string",
	"description": "Declared proficiency: beginner, intermediate, advanced, expert (French labels such as débutant or intermédiaire are accepted). Unknown values search every level.",
}

var contextProperty = map[string]interface{}{
	"type":        "string",
	"description": "Optional professional context that enriches the search (e.g. 'data engineering role')",
}

// recommendCoursesTool returns the tool definition for recommend_courses
func recommendCoursesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recommend_courses",
		Description: "Recommend catalog courses for a skill, ranked by hybrid semantic and lexical relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"skill": map[string]interface{}{
					"type":        "string",
					"description": "Skill to learn (e.g. 'Docker', 'Machine Learning')",
				},
				"top_n": map[string]interface{}{
					"type":        "integer",
					"description": "Number of courses to return (1-100)",
					"default":     3,
					"minimum":     1,
					"maximum":     100,
				},
				"level":   levelProperty,
				"context": contextProperty,
			},
			Required: []string{"skill"},
		},
	}
}

// recommendForSkillsTool returns the tool definition for recommend_for_skills
func recommendForSkillsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recommend_for_skills",
		Description: "Recommend courses for several missing skills, merged by score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"skills": map[string]interface{}{
					"type":        "array",
					"description": "Skills to cover (1-20)",
					"items": map[string]interface{}{
						"type": "string",
					},
					"minItems": 1,
					"maxItems": 20,
				},
				"per_skill": map[string]interface{}{
					"type":        "integer",
					"description": "Courses per skill (1-20)",
					"default":     3,
					"minimum":     1,
					"maximum":     20,
				},
				"level":   levelProperty,
				"context": contextProperty,
			},
			Required: []string{"skills"},
		},
	}
}

// syncIndexTool returns the tool definition for sync_index
func syncIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_index",
		Description: "Embed new and changed catalog courses into the embedding index and prune removed ones",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, reset the index and re-embed every course (required after switching embedders)",
					"default":     false,
				},
			},
		},
	}
}

// getIndexStatusTool returns the tool definition for get_index_status
func getIndexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_index_status",
		Description: "Compare the embedding index with the course catalog",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
