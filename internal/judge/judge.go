// Package judge grades a finished test report with an LLM acting as judge.
// The judge reads the report's questions and agent answers and estimates how
// many answers are genuinely useful, complementing the rule-based evaluator
// with a quality signal.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/archon-ai/agent-tester/internal/openrouter"
)

// DefaultModel is the OpenRouter model used when none is configured.
const DefaultModel = "anthropic/claude-sonnet-4.5"

// Config holds judging configuration.
type Config struct {
	Model       string
	Repetitions int
}

// PassScore is the parsed verdict of a single judging pass.
type PassScore struct {
	Satisfactory *int     `json:"satisfactory"`
	Total        *int     `json:"total"`
	Percent      *float64 `json:"percentage"`
	RawOutput    string   `json:"raw_output"`
	ParseErr     string   `json:"parse_error,omitempty"`
}

// Review is the full structured judging output.
type Review struct {
	Metadata Metadata    `json:"metadata"`
	Passes   []PassScore `json:"passes"`
	Summary  Summary     `json:"summary"`
}

// Metadata records what was judged and how.
type Metadata struct {
	Timestamp   string `json:"timestamp"`
	ReportFile  string `json:"report_file"`
	Model       string `json:"model"`
	Repetitions int    `json:"repetitions"`
}

// Summary holds aggregate statistics over the judging passes.
type Summary struct {
	MeanSatisfactory *float64 `json:"mean_satisfactory"`
	MeanPercent      *float64 `json:"mean_percentage"`
	MinSatisfactory  *int     `json:"min_satisfactory"`
	MaxSatisfactory  *int     `json:"max_satisfactory"`
	Variance         *float64 `json:"variance"`
	AllPassesParsed  bool     `json:"all_passes_parsed"`
}

// Judge grades reports using an LLM behind the model gateway.
type Judge struct {
	client openrouter.Client
	config Config
}

// New creates a Judge.
func New(client openrouter.Client, config Config) *Judge {
	if config.Repetitions <= 0 {
		config.Repetitions = 3
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &Judge{client: client, config: config}
}

// ReviewFile reads a JSON report and judges it.
func (j *Judge) ReviewFile(ctx context.Context, reportFile string) (*Review, error) {
	content, err := os.ReadFile(reportFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("report file %s is not valid JSON; only JSON reports can be judged", reportFile)
	}
	return j.Review(ctx, string(content), reportFile)
}

// Review judges the given report content over the configured number of
// passes. A failed pass is recorded and judging continues.
func (j *Judge) Review(ctx context.Context, content, reportFile string) (*Review, error) {
	review := &Review{
		Metadata: Metadata{
			Timestamp:   time.Now().Format(time.RFC3339),
			ReportFile:  reportFile,
			Model:       j.config.Model,
			Repetitions: j.config.Repetitions,
		},
		Passes: make([]PassScore, 0, j.config.Repetitions),
	}

	for i := 0; i < j.config.Repetitions; i++ {
		slog.Info("judging pass", "pass", i+1, "total", j.config.Repetitions)

		text, err := j.grade(ctx, content)
		if err != nil {
			slog.Error("judging pass failed", "pass", i+1, "error", err)
			review.Passes = append(review.Passes, PassScore{ParseErr: err.Error()})
			continue
		}

		parsed := parseScore(text)
		review.Passes = append(review.Passes, parsed)

		if parsed.Satisfactory != nil {
			slog.Info("judge score parsed",
				"pass", i+1,
				"satisfactory", *parsed.Satisfactory,
				"total", *parsed.Total,
				"percentage", *parsed.Percent,
			)
		}
	}

	review.Summary = calculateStatistics(review.Passes)
	return review, nil
}

// WriteReviewFile writes the review as JSON next to the report file and
// returns its path.
func WriteReviewFile(review *Review, reportFile string) (string, error) {
	reviewFile := strings.TrimSuffix(reportFile, ".json") + "_review.json"

	data, err := json.MarshalIndent(review, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal review: %w", err)
	}
	if err := os.WriteFile(reviewFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write review file: %w", err)
	}
	return reviewFile, nil
}

// grade sends one judging request, streaming when the gateway supports it.
func (j *Judge) grade(ctx context.Context, content string) (string, error) {
	req := openrouter.ChatRequest{
		Model:         j.config.Model,
		SystemMessage: JudgePrompt,
		UserMessage:   content,
	}

	stream, err := j.client.ChatCompletionStream(ctx, req)
	if err == nil {
		result, streamErr := openrouter.CollectStream(stream)
		if streamErr == nil {
			return result, nil
		}
		slog.Warn("streaming judge request failed, falling back to non-streaming", "error", streamErr)
	} else {
		slog.Debug("streaming not available, using non-streaming", "error", err)
	}

	resp, err := j.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	return resp.Content, nil
}

var scorePattern = regexp.MustCompile(`(\d+)\s+out\s+of\s+(\d+)`)

func parseScore(text string) PassScore {
	matches := scorePattern.FindStringSubmatch(text)
	if matches == nil {
		return PassScore{
			RawOutput: text,
			ParseErr:  "could not parse score from judge output",
		}
	}

	satisfactory, _ := strconv.Atoi(matches[1])
	total, _ := strconv.Atoi(matches[2])
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(satisfactory)/float64(total)*10000) / 100
	}

	return PassScore{
		Satisfactory: &satisfactory,
		Total:        &total,
		Percent:      &pct,
		RawOutput:    text,
	}
}

func calculateStatistics(passes []PassScore) Summary {
	var counts []int
	var percents []float64
	for _, p := range passes {
		if p.Satisfactory != nil {
			counts = append(counts, *p.Satisfactory)
			percents = append(percents, *p.Percent)
		}
	}

	if len(counts) == 0 {
		return Summary{AllPassesParsed: false}
	}

	mean := meanInt(counts)
	meanPct := meanFloat(percents)
	minC := slices.Min(counts)
	maxC := slices.Max(counts)
	variance := varianceFloat(counts, mean)

	return Summary{
		MeanSatisfactory: &mean,
		MeanPercent:      &meanPct,
		MinSatisfactory:  &minC,
		MaxSatisfactory:  &maxC,
		Variance:         &variance,
		AllPassesParsed:  len(counts) == len(passes),
	}
}

func meanInt(vals []int) float64 {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return math.Round(float64(sum)/float64(len(vals))*100) / 100
}

func meanFloat(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return math.Round(sum/float64(len(vals))*100) / 100
}

// varianceFloat calculates the population variance of integer values given a
// precomputed mean.
func varianceFloat(vals []int, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sumSquaredDiff := 0.0
	for _, v := range vals {
		diff := float64(v) - mean
		sumSquaredDiff += diff * diff
	}
	return math.Round(sumSquaredDiff/float64(len(vals))*100) / 100
}
