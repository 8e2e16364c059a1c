package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wastelens/wastelens/pkg/engine/detect"
	"github.com/wastelens/wastelens/pkg/engine/drift"
	"github.com/wastelens/wastelens/pkg/engine/executor"
	"github.com/wastelens/wastelens/pkg/engine/recommend"
	"github.com/wastelens/wastelens/pkg/metrics"
)

func (s *Server) detectWaste(c *fiber.Ctx) error {
	var body struct {
		Refresh bool `json:"refresh"`
	}
	// Empty bodies are fine; refresh defaults to false.
	_ = c.BodyParser(&body)

	result, err := s.engine.Detector.DetectAll(c.UserContext(), detect.ScanOptions{Bypass: body.Refresh})
	if err != nil {
		return fail(c, err)
	}

	cache := "miss"
	switch {
	case body.Refresh:
		cache = "bypass"
	case result.CacheHit:
		cache = "hit"
	}
	metrics.ScansTotal.WithLabelValues(cache).Inc()
	metrics.DetectionsLastScan.Set(float64(result.Summary.TotalDetections))
	metrics.PotentialSavings.Set(result.Summary.TotalPotentialSavings)
	return ok(c, result)
}

func (s *Server) listRecommendations(c *fiber.Ctx) error {
	if c.QueryBool("summary") {
		sum, err := s.engine.Recommendations.Summarize(c.UserContext())
		if err != nil {
			return fail(c, err)
		}
		return ok(c, sum)
	}

	f := recommend.Filter{
		ScenarioID:   c.Query("scenario_id"),
		ResourceType: c.Query("resource_type"),
		ImpactLevel:  c.Query("impact_level"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	}
	if status := c.Query("status"); status != "" {
		f.Statuses = strings.Split(status, ",")
	}
	recs, err := s.engine.Recommendations.List(c.UserContext(), f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, recs)
}

func (s *Server) generateRecommendations(c *fiber.Ctx) error {
	var body struct {
		Generate bool `json:"generate"`
		Refresh  bool `json:"refresh"`
	}
	if err := c.BodyParser(&body); err != nil || !body.Generate {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "expected {\"generate\": true}",
		})
	}

	ctx := c.UserContext()
	scan, err := s.engine.Detector.DetectAll(ctx, detect.ScanOptions{Bypass: body.Refresh})
	if err != nil {
		return fail(c, err)
	}
	res, err := s.engine.Recommendations.Ingest(ctx, scan.Detections)
	if err != nil {
		return fail(c, err)
	}
	metrics.RecommendationsCreated.Add(float64(res.Created))
	return c.JSON(fiber.Map{
		"success": true,
		"created": res.Created,
		"skipped": res.Skipped,
	})
}

func (s *Server) transitionRecommendation(c *fiber.Ctx) error {
	var body struct {
		ID         string `json:"id"`
		Action     string `json:"action"`
		ActionedBy string `json:"actioned_by"`
		Reason     string `json:"reason"`
		Days       int    `json:"days"`
		Date       string `json:"date"`
	}
	if err := c.BodyParser(&body); err != nil || body.ID == "" || body.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "id and action are required",
		})
	}

	params := recommend.TransitionParams{
		ActionedBy: body.ActionedBy,
		Reason:     body.Reason,
		Days:       body.Days,
	}
	if body.Date != "" {
		date, err := time.Parse(time.RFC3339, body.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "date must be RFC3339",
			})
		}
		params.Date = date
	}

	rec, execResult, err := s.engine.Recommendations.Transition(c.UserContext(), body.ID, body.Action, params)
	if err != nil {
		resp := fiber.Map{"success": false, "error": err.Error()}
		if execResult != nil {
			resp["executionResult"] = execResult
		}
		return c.Status(statusFor(err)).JSON(resp)
	}
	if execResult != nil {
		metrics.RecordAction(execResult.Action, execResult.Success)
		return c.JSON(fiber.Map{
			"success":         true,
			"data":            rec,
			"executionResult": execResult,
		})
	}
	return ok(c, rec)
}

func (s *Server) deleteRecommendation(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "id is required",
		})
	}
	if err := s.engine.Recommendations.Delete(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"deleted": id})
}

func (s *Server) executeAction(c *fiber.Ctx) error {
	var params executor.Params
	if err := c.BodyParser(&params); err != nil || params.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "action is required",
		})
	}

	result, err := s.engine.Executor.Execute(c.UserContext(), params)
	metrics.RecordAction(params.Action, result.Success)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"success":         false,
			"error":           result.Message,
			"executionResult": result,
		})
	}
	return c.JSON(fiber.Map{
		"success":         true,
		"executionResult": result,
	})
}

func (s *Server) driftTick(c *fiber.Ctx) error {
	var opts drift.TickOptions
	_ = c.BodyParser(&opts)

	result, err := s.engine.Drift.Tick(c.UserContext(), opts)
	if err != nil {
		return fail(c, err)
	}
	metrics.DriftTicksTotal.Inc()
	return ok(c, result)
}

func (s *Server) getExecutionMode(c *fiber.Ctx) error {
	account := c.Query("account_id", "default")
	m, err := s.engine.Modes.Get(c.UserContext(), account)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"account_id": account, "mode": m})
}

func (s *Server) setExecutionMode(c *fiber.Ctx) error {
	var body struct {
		AccountID string `json:"account_id"`
		Mode      string `json:"mode"`
	}
	if err := c.BodyParser(&body); err != nil || body.Mode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "mode is required",
		})
	}
	if body.AccountID == "" {
		body.AccountID = "default"
	}
	if err := s.engine.Modes.Set(c.UserContext(), body.AccountID, body.Mode); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return ok(c, fiber.Map{"account_id": body.AccountID, "mode": body.Mode})
}

func (s *Server) auditLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	entries, err := s.engine.Audit.Recent(c.UserContext(), limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, entries)
}
