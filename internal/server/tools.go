package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Analysis and fitting
		{
			Name:        "similarity_compare",
			Description: "Score two images against each other and return the metric breakdown (pixel difference, histogram correlation, structural similarity). The candidate is resized to the reference dimensions if they differ.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reference_path": map[string]any{
						"type":        "string",
						"description": "Path to the reference photo",
					},
					"candidate_path": map[string]any{
						"type":        "string",
						"description": "Path to the candidate image (typically a rendered frame)",
					},
				},
				"required": []string{"reference_path", "candidate_path"},
			},
		},
		{
			Name:        "detect_features",
			Description: "Run the feature detector over a product photo: main shape, padded crop, corner radii, sub-features, gradient seed colors, and label regions. Optionally saves an annotated overlay PNG.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"image_path": map[string]any{
						"type":        "string",
						"description": "Path to the photo to analyze",
					},
					"debug_path": map[string]any{
						"type":        "string",
						"description": "Optional path to save an overlay PNG with the detected boxes drawn",
					},
					"skip_labels": map[string]any{
						"type":        "boolean",
						"description": "Skip the label detection pass (overrides the configured default)",
					},
				},
				"required": []string{"image_path"},
			},
		},
		{
			Name:        "render_scene",
			Description: "Render a scene description on a fixed canvas. Saves a PNG to output_path and/or an SVG to svg_path; with neither, returns the frame as base64 PNG.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scene": map[string]any{
						"type":        "object",
						"description": "Scene parameters: position, size, corner_radius, gradient_stops, lighting",
					},
					"width": map[string]any{
						"type":        "integer",
						"description": "Canvas width in pixels",
					},
					"height": map[string]any{
						"type":        "integer",
						"description": "Canvas height in pixels",
					},
					"background": map[string]any{
						"type":        "string",
						"description": "Canvas background as #RRGGBB (defaults to the configured background)",
					},
					"backend": map[string]any{
						"type":        "string",
						"enum":        []string{"svg", "chrome"},
						"description": "Rasterization backend (defaults to the configured backend)",
					},
					"output_path": map[string]any{
						"type":        "string",
						"description": "Optional path to save the rendered PNG",
					},
					"svg_path": map[string]any{
						"type":        "string",
						"description": "Optional path to save the SVG document",
					},
				},
				"required": []string{"scene", "width", "height"},
			},
		},
		{
			Name:        "optimize_run",
			Description: "Run the full fitting loop against a photo: detect the product, render candidates, score them, and adjust parameters until the similarity threshold or the iteration cap is reached. The run is archived unless no_archive is set.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"image_path": map[string]any{
						"type":        "string",
						"description": "Path to the reference photo",
					},
					"config": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"similarity_threshold": map[string]any{
								"type":        "number",
								"description": "Stop once the composite score reaches this value (0-1)",
							},
							"max_iterations": map[string]any{
								"type":        "integer",
								"description": "Maximum render/evaluate cycles",
							},
							"render_timeout": map[string]any{
								"type":        "string",
								"description": "Per-render timeout as a duration string (e.g. \"30s\")",
							},
							"backend": map[string]any{
								"type": "string",
								"enum": []string{"svg", "chrome"},
							},
						},
						"description": "Optional overrides of the configured loop bounds",
					},
					"no_archive": map[string]any{
						"type":        "boolean",
						"description": "Skip persisting the run to the archive",
						"default":     false,
					},
				},
				"required": []string{"image_path"},
			},
		},

		// Calibration
		{
			Name:        "calibration_click_original",
			Description: "Record a calibration click on the reference photo. When image_path is given, the color under the click is sampled and attached to the marker. Completes the earliest pair missing an original side, or opens a new pair.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{
						"type":        "number",
						"description": "Click X in image coordinates",
					},
					"y": map[string]any{
						"type":        "number",
						"description": "Click Y in image coordinates",
					},
					"image_path": map[string]any{
						"type":        "string",
						"description": "Optional photo path to sample the click color from",
					},
				},
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "calibration_click_rendered",
			Description: "Record a calibration click on the rendered image. Binds to the earliest pair that has an original but no rendered side, or opens a new pair.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{"type": "number"},
					"y": map[string]any{"type": "number"},
				},
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "calibration_list",
			Description: "List all marker pairs and the offset report derived from the complete ones (mean displacement, pairs used, outliers).",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "calibration_clear",
			Description: "Drop every marker pair and reset pair numbering.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},

		// Run archive
		{
			Name:        "runs_list",
			Description: "List archived fitting runs, newest first. Summaries omit the full iteration history; use runs_get for one run's details.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum runs to return (default 50)",
					},
				},
			},
		},
		{
			Name:        "runs_get",
			Description: "Fetch one archived run with its full result, including the per-iteration history.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"run_id": map[string]any{
						"type":        "string",
						"description": "Run identifier as returned by optimize_run or runs_list",
					},
				},
				"required": []string{"run_id"},
			},
		},

		// Introspection
		{
			Name:        "server_info",
			Description: "Report server version, protocol revision, available render backends, the active label detection backend, and session state.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"tools": GetToolDefinitions(),
		},
	}
}
