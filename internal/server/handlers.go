package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/adjust"
	"github.com/svgfit/svgfit/internal/archive"
	"github.com/svgfit/svgfit/internal/detect"
	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/optimize"
	"github.com/svgfit/svgfit/internal/render"
	"github.com/svgfit/svgfit/internal/scene"
)

// errArchiveDisabled is returned by the runs_* tools when no archive handle
// was attached to the server.
var errArchiveDisabled = errors.New("run archive is disabled")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "detect_features", "optimize_run").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	// Analysis and fitting
	case "similarity_compare":
		return s.handleSimilarityCompare(args)
	case "detect_features":
		return s.handleDetectFeatures(args)
	case "render_scene":
		return s.handleRenderScene(ctx, args)
	case "optimize_run":
		return s.handleOptimizeRun(ctx, args)

	// Calibration
	case "calibration_click_original":
		return s.handleCalibrationClickOriginal(args)
	case "calibration_click_rendered":
		return s.handleCalibrationClickRendered(args)
	case "calibration_list":
		return s.handleCalibrationList()
	case "calibration_clear":
		return s.handleCalibrationClear()

	// Run archive
	case "runs_list":
		return s.handleRunsList(ctx, args)
	case "runs_get":
		return s.handleRunsGet(ctx, args)

	// Introspection
	case "server_info":
		return s.handleServerInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id any, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Analysis and Fitting Handlers ===

type similarityCompareArgs struct {
	ReferencePath string `json:"reference_path"`
	CandidatePath string `json:"candidate_path"`
}

func (s *Server) handleSimilarityCompare(args json.RawMessage) (any, error) {
	var a similarityCompareArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	ref, err := s.cache.Load(a.ReferencePath)
	if err != nil {
		return nil, err
	}
	cand, err := s.cache.Load(a.CandidatePath)
	if err != nil {
		return nil, err
	}

	// The fitting loop scores frames at reference dimensions; the tool
	// mirrors that instead of failing on a size mismatch.
	fitted := false
	rb, cb := ref.Bounds(), cand.Bounds()
	if rb.Dx() != cb.Dx() || rb.Dy() != cb.Dy() {
		cand, err = imaging.FitTo(cand, rb.Dx(), rb.Dy())
		if err != nil {
			return nil, err
		}
		fitted = true
	}

	res, err := s.eval.Compare(ref, cand)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"reference_path": a.ReferencePath,
		"candidate_path": a.CandidatePath,
		"fitted":         fitted,
		"similarity":     res,
	}, nil
}

type detectFeaturesArgs struct {
	ImagePath  string `json:"image_path"`
	DebugPath  string `json:"debug_path"`
	SkipLabels *bool  `json:"skip_labels"`
}

func (s *Server) handleDetectFeatures(args json.RawMessage) (any, error) {
	var a detectFeaturesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.ImagePath)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Detector.Options()
	if a.SkipLabels != nil {
		opts.SkipLabels = *a.SkipLabels
	}

	res, err := detect.Detect(img, opts)
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"image_path": a.ImagePath,
		"detection":  res,
	}
	if a.DebugPath != "" {
		if err := saveDetectOverlay(img, res, a.DebugPath); err != nil {
			return nil, err
		}
		out["debug_path"] = a.DebugPath
	}
	return out, nil
}

// saveDetectOverlay writes the photo with every detected box outlined.
func saveDetectOverlay(img image.Image, det *detect.Result, path string) error {
	enc, err := imaging.Overlay(img, imaging.OverlayOptions{Boxes: det.OverlayBoxes()})
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		return fmt.Errorf("failed to decode overlay: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	return nil
}

type renderSceneArgs struct {
	Scene      json.RawMessage `json:"scene"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Background string          `json:"background"`
	Backend    string          `json:"backend"`
	OutputPath string          `json:"output_path"`
	SVGPath    string          `json:"svg_path"`
}

func (s *Server) handleRenderScene(ctx context.Context, args json.RawMessage) (any, error) {
	var a renderSceneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Scene) == 0 {
		return nil, fmt.Errorf("scene is required")
	}

	var sc scene.Scene
	if err := json.Unmarshal(a.Scene, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}

	canvas := render.Canvas{Width: a.Width, Height: a.Height, Background: a.Background}
	if canvas.Background == "" {
		canvas.Background = s.cfg.Renderer.Background
	}
	backend := a.Backend
	if backend == "" {
		backend = s.cfg.Renderer.Backend
	}

	out := map[string]any{
		"width":   a.Width,
		"height":  a.Height,
		"backend": backend,
	}

	if a.SVGPath != "" {
		doc, err := render.SVG(canvas, &sc)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(a.SVGPath, doc, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write svg: %w", err)
		}
		out["svg_path"] = a.SVGPath
	}

	renderer, err := render.New(backend, canvas)
	if err != nil {
		return nil, err
	}
	img, err := renderer.Render(ctx, &sc)
	if err != nil {
		return nil, err
	}

	if a.OutputPath != "" {
		if err := writePNG(a.OutputPath, img); err != nil {
			return nil, err
		}
		// Cache the frame under its path so a later compare or
		// calibration click reads the exact rendered pixels.
		s.cache.Put(a.OutputPath, img)
		out["output_path"] = a.OutputPath
	}
	if a.OutputPath == "" && a.SVGPath == "" {
		enc, err := imaging.Encode(img)
		if err != nil {
			return nil, err
		}
		out["image"] = enc
	}
	return out, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}

type optimizeRunArgs struct {
	ImagePath string             `json:"image_path"`
	Config    *optimizeOverrides `json:"config"`
	NoArchive bool               `json:"no_archive"`
}

// optimizeOverrides narrows the configured loop bounds for one run. Pointer
// fields distinguish "absent" from an explicit zero.
type optimizeOverrides struct {
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	MaxIterations       *int     `json:"max_iterations"`
	RenderTimeout       string   `json:"render_timeout"`
	Backend             string   `json:"backend"`
}

func (s *Server) handleOptimizeRun(ctx context.Context, args json.RawMessage) (any, error) {
	var a optimizeRunArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.ImagePath)
	if err != nil {
		return nil, err
	}

	det, err := detect.Detect(img, s.cfg.Detector.Options())
	if err != nil {
		return nil, err
	}

	// The loop fits inside the padded crop: the canvas takes its size and
	// the reference is the matching region of the photo.
	x1, y1 := int(det.PaddedRect.X), int(det.PaddedRect.Y)
	reference, err := imaging.CropRect(img, x1, y1, x1+det.Width, y1+det.Height)
	if err != nil {
		return nil, err
	}

	loopCfg := s.cfg.Optimizer.LoopConfig()
	backend := s.cfg.Renderer.Backend
	if a.Config != nil {
		if a.Config.SimilarityThreshold != nil {
			loopCfg.SimilarityThreshold = *a.Config.SimilarityThreshold
		}
		if a.Config.MaxIterations != nil {
			loopCfg.MaxIterations = *a.Config.MaxIterations
		}
		if a.Config.RenderTimeout != "" {
			d, err := time.ParseDuration(a.Config.RenderTimeout)
			if err != nil {
				return nil, fmt.Errorf("invalid render_timeout: %w", err)
			}
			loopCfg.RenderTimeout = d
		}
		if a.Config.Backend != "" {
			backend = a.Config.Backend
		}
	}

	canvas := render.Canvas{Width: det.Width, Height: det.Height, Background: s.cfg.Renderer.Background}
	renderer, err := render.New(backend, canvas)
	if err != nil {
		return nil, err
	}

	loop, err := optimize.New(renderer, s.strategy(), loopCfg,
		optimize.WithEvaluator(s.eval),
		optimize.WithCalibration(s.calib),
		optimize.WithLogger(s.log))
	if err != nil {
		return nil, err
	}

	res, err := loop.Run(ctx, reference, det.InitialScene())
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"source": a.ImagePath,
		"result": res,
	}
	if s.store != nil && !a.NoArchive {
		rec, err := s.store.Save(ctx, archive.Record{
			Source:         a.ImagePath,
			State:          res.State,
			BestSimilarity: res.BestSimilarity,
			Iterations:     res.Iterations,
			Result:         res,
		})
		if err != nil {
			// A failed insert must not lose the computed result.
			s.log.Warn("failed to archive run", zap.Error(err))
			out["archive_error"] = err.Error()
		} else {
			out["run_id"] = rec.ID
		}
	}
	return out, nil
}

// strategy builds the adjustment chain from the server configuration.
func (s *Server) strategy() optimize.Strategy {
	tuning := adjust.DefaultTuning()
	tuning.OutlierThreshold = s.cfg.Calibration.OutlierThreshold
	tuning.ExcludeOutliers = s.cfg.Calibration.ExcludeOutliers
	if n := s.cfg.Detector.GradientSamples; n > 0 {
		tuning.GradientSamples = n
	}
	return adjust.New(tuning, adjust.WithLogger(s.log))
}

// === Calibration Handlers ===

type clickOriginalArgs struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ImagePath string  `json:"image_path"`
}

func (s *Server) handleCalibrationClickOriginal(args json.RawMessage) (any, error) {
	var a clickOriginalArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	clickColor := ""
	if a.ImagePath != "" {
		img, err := s.cache.Load(a.ImagePath)
		if err != nil {
			return nil, err
		}
		sample, err := imaging.SamplePoint(img, int(math.Round(a.X)), int(math.Round(a.Y)))
		if err != nil {
			return nil, err
		}
		clickColor = sample.Hex
	}

	pair := s.calib.ClickOriginal(a.X, a.Y, clickColor)
	return map[string]any{
		"pair":     pair,
		"complete": pair.Complete(),
	}, nil
}

type clickRenderedArgs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleCalibrationClickRendered(args json.RawMessage) (any, error) {
	var a clickRenderedArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	pair := s.calib.ClickRendered(a.X, a.Y)
	return map[string]any{
		"pair":     pair,
		"complete": pair.Complete(),
	}, nil
}

func (s *Server) handleCalibrationList() (any, error) {
	pairs := s.calib.Pairs()
	report := s.calib.Snapshot().OffsetReport(s.cfg.Calibration.Policy())
	return map[string]any{
		"pairs":         pairs,
		"count":         len(pairs),
		"offset_report": report,
	}, nil
}

func (s *Server) handleCalibrationClear() (any, error) {
	s.calib.Clear()
	return map[string]any{"cleared": true}, nil
}

// === Run Archive Handlers ===

type runsListArgs struct {
	Limit int `json:"limit"`
}

func (s *Server) handleRunsList(ctx context.Context, args json.RawMessage) (any, error) {
	if s.store == nil {
		return nil, errArchiveDisabled
	}

	var a runsListArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}

	runs, err := s.store.List(ctx, a.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"runs":  runs,
		"count": len(runs),
	}, nil
}

type runsGetArgs struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleRunsGet(ctx context.Context, args json.RawMessage) (any, error) {
	if s.store == nil {
		return nil, errArchiveDisabled
	}

	var a runsGetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.RunID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	return s.store.Get(ctx, a.RunID)
}

// === Introspection Handlers ===

func (s *Server) handleServerInfo() (any, error) {
	return map[string]any{
		"name":              serverName,
		"version":           s.version,
		"protocol":          protocolVersion,
		"label_backend":     detect.LabelBackend(),
		"render_backends":   []string{render.BackendRaster, render.BackendChrome},
		"default_backend":   s.cfg.Renderer.Backend,
		"archive_enabled":   s.store != nil,
		"calibration_pairs": len(s.calib.Pairs()),
		"cached_images":     s.cache.Len(),
	}, nil
}
