package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"FinDash/internal/domain"
	"FinDash/internal/domain/models"
	"FinDash/internal/domain/service"
	xhttp "FinDash/pkg/http"
)

// Client asks a remote scoring service for predictions.
type Client struct {
	baseURL string
	client  *xhttp.Client
	clock   clockwork.Clock
}

// NewClient builds a scoring client for baseURL.
func NewClient(baseURL string, timeout time.Duration, clock clockwork.Clock, opts ...xhttp.ClientOption) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)...),
		clock:   clock,
	}
}

type scoreRequest struct {
	CurrentPrice float64   `json:"currentPrice"`
	PriceHistory []float64 `json:"priceHistory"`
	Models       []string  `json:"models"`
}

type scoreResponse struct {
	Direction     string `json:"direction"`
	Confidence    int    `json:"confidence"`
	Model         string `json:"model"`
	Probabilities struct {
		Up   float64 `json:"up"`
		Down float64 `json:"down"`
	} `json:"probabilities"`
}

// Predict posts the current price window to /predict. The remote probabilities are
// renormalized so they sum to 100.
func (c *Client) Predict(ctx context.Context, snap *models.Snapshot) (*models.Prediction, error) {
	if snap == nil {
		return nil, domain.ErrNoSnapshot
	}

	req := scoreRequest{
		CurrentPrice: snap.CurrentPrice,
		PriceHistory: make([]float64, len(snap.PriceHistory)),
		Models:       make([]string, len(models.AllModels)),
	}
	for i, p := range snap.PriceHistory {
		req.PriceHistory[i] = p.Price
	}
	for i, m := range models.AllModels {
		req.Models[i] = string(m)
	}

	var resp scoreResponse
	if err := c.PostJSON(ctx, "/predict", req, &resp); err != nil {
		return nil, err
	}

	return &models.Prediction{
		Direction:     models.Direction(strings.ToUpper(resp.Direction)),
		Confidence:    resp.Confidence,
		Probabilities: NormalizeProbabilities(resp.Probabilities.Up, resp.Probabilities.Down),
		Model:         models.ModelName(resp.Model),
		Timestamp:     c.clock.Now().UTC(),
	}, nil
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("scoring client: base url not configured")
	}
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

var _ service.Predictor = (*Client)(nil)
