package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultHistoryLimit = 100
	// DefaultModelName is shown when the backend does not report an algorithm.
	DefaultModelName = "RandomForestClassifier"
)

// Login exchanges credentials for a bearer token. It does not touch the
// default headers; callers hand the token to the session store.
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	var out TokenResponse
	err := c.postJSON(ctx, "/auth/login", LoginRequest{Username: username, Password: password}, "Login failed", &out)
	if err != nil {
		return TokenResponse{}, err
	}
	if out.AccessToken == "" {
		return TokenResponse{}, &Error{Code: "BAD_RESPONSE", Message: "Login failed"}
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	return out, c.getJSON(ctx, "/health", "Backend unavailable", &out)
}

func (c *Client) DashboardOverview(ctx context.Context) (Overview, error) {
	var out Overview
	return out, c.getJSON(ctx, "/dashboard/overview", "Could not load overview", &out)
}

func (c *Client) Analytics(ctx context.Context) (Analytics, error) {
	var out Analytics
	return out, c.getJSON(ctx, "/analytics", "Could not load analytics", &out)
}

func (c *Client) Metrics(ctx context.Context) (Metrics, error) {
	var out Metrics
	return out, c.getJSON(ctx, "/metrics", "Could not load model metrics", &out)
}

// History returns the most recent predictions; limit <= 0 uses DefaultHistoryLimit.
func (c *Client) History(ctx context.Context, limit int) (History, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	var out History
	return out, c.getJSON(ctx, "/history?"+q.Encode(), "Could not load history", &out)
}

func (c *Client) PredictLive(ctx context.Context, req LivePredictionRequest) (Prediction, error) {
	var out Prediction
	return out, c.postJSON(ctx, "/predict/live", req, "Prediction failed", &out)
}

// UploadData sends a CSV file as the multipart field "file".
func (c *Client) UploadData(ctx context.Context, filename string, r io.Reader) (UploadSummary, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadSummary{}, fmt.Errorf("read upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadSummary{}, fmt.Errorf("build upload form: %w", err)
	}

	var out UploadSummary
	err = c.do(ctx, http.MethodPost, "/upload-data", &buf, mw.FormDataContentType(), "Upload failed", &out)
	return out, err
}

func (c *Client) ReportSummary(ctx context.Context) (ReportSummary, error) {
	var out ReportSummary
	return out, c.getJSON(ctx, "/reports/summary", "Could not load report summary", &out)
}

func (c *Client) AboutModel(ctx context.Context) (AboutModel, error) {
	var out AboutModel
	return out, c.getJSON(ctx, "/about-model", "Could not load model details", &out)
}

// ActiveModelName returns the backend's algorithm name, or DefaultModelName
// on any failure.
func (c *Client) ActiveModelName(ctx context.Context) string {
	about, err := c.AboutModel(ctx)
	if err != nil || about.Algorithm == "" {
		return DefaultModelName
	}
	return about.Algorithm
}
