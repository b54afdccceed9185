package api

import (
	"slices"
	"sort"
)

// Risk class labels returned by the backend.
const (
	LabelOnTime  = "On-Time"
	LabelAtRisk  = "At Risk"
	LabelDelayed = "Delayed"
)

// RiskLabels lists the classes in display order.
var RiskLabels = []string{LabelOnTime, LabelAtRisk, LabelDelayed}

// OrderedLabels returns the keys of a per-class map with the known risk
// classes first and any others after them by name.
func OrderedLabels[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for _, label := range RiskLabels {
		if _, ok := m[label]; ok {
			keys = append(keys, label)
		}
	}
	rest := make([]string, 0, len(m)-len(keys))
	for k := range m {
		if !slices.Contains(RiskLabels, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type KPIs struct {
	TotalOrders         int     `json:"total_orders"`
	OnTimePct           float64 `json:"on_time_pct"`
	AtRiskPct           float64 `json:"at_risk_pct"`
	DelayedPct          float64 `json:"delayed_pct"`
	AvgProcessingTime   float64 `json:"avg_processing_time"`
	AvgShipmentDistance float64 `json:"avg_shipment_distance"`
}

type FeatureImpact struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type TrendPoint map[string]any

type Overview struct {
	KPIs             KPIs            `json:"kpis"`
	RiskDistribution map[string]int  `json:"risk_distribution"`
	RiskTrend        []TrendPoint    `json:"risk_trend"`
	FeatureImpact    []FeatureImpact `json:"feature_impact"`
}

type ClassDistribution struct {
	BeforeSMOTE map[string]int `json:"before_smote"`
	AfterSMOTE  map[string]int `json:"after_smote"`
}

type ConfusionMatrix struct {
	Labels []string `json:"labels"`
	Values [][]int  `json:"values"`
}

type ClassProfile struct {
	Label              string  `json:"label"`
	AvgProcessingProxy float64 `json:"avg_processing_proxy"`
	AvgDistance        float64 `json:"avg_distance"`
}

type Analytics struct {
	ConfusionMatrix   ConfusionMatrix   `json:"confusion_matrix"`
	FeatureImportance []FeatureImpact   `json:"feature_importance"`
	ClassDistribution ClassDistribution `json:"class_distribution"`
	ProcessingVsRisk  []ClassProfile    `json:"processing_vs_risk"`
	DistanceVsRisk    []DistancePoint   `json:"distance_vs_risk"`
}

// DistancePoint is one sampled delivery from the distance/complexity scatter.
type DistancePoint struct {
	DistanceKM      float64 `json:"distance_km"`
	ComplexityScore float64 `json:"Complexity_Score"`
	Label           string  `json:"label"`
}

type ModelMetrics struct {
	Name       string  `json:"name"`
	Accuracy   float64 `json:"accuracy"`
	MacroF1    float64 `json:"macro_f1"`
	WeightedF1 float64 `json:"weighted_f1"`
}

type Metrics struct {
	Models []ModelMetrics `json:"models"`
	Notes  string         `json:"notes"`
}

// Best returns the model with the highest accuracy.
func (m Metrics) Best() (ModelMetrics, bool) {
	if len(m.Models) == 0 {
		return ModelMetrics{}, false
	}
	best := m.Models[0]
	for _, model := range m.Models[1:] {
		if model.Accuracy > best.Accuracy {
			best = model
		}
	}
	return best, true
}

type HistoryItem struct {
	ID              int            `json:"id"`
	Username        string         `json:"username"`
	CreatedAt       string         `json:"created_at"`
	RequestPayload  map[string]any `json:"request_payload"`
	PredictionLabel string         `json:"prediction_label"`
	PredictionID    int            `json:"prediction_id"`
	Confidence      float64        `json:"confidence"`
}

type History struct {
	Items []HistoryItem `json:"items"`
}

// Traffic and weather choices accepted by the live prediction form.
var (
	TrafficLevels     = []string{"low", "medium", "high"}
	WeatherIndicators = []string{"clear", "rain", "storm"}
)

type LivePredictionRequest struct {
	OrderVolume           float64 `json:"order_volume"`
	WarehouseTime         float64 `json:"warehouse_time"`
	ShipmentDistance      float64 `json:"shipment_distance"`
	TrafficLevel          string  `json:"traffic_level"`
	WeatherIndicator      string  `json:"weather_indicator"`
	HistoricalPerformance float64 `json:"historical_performance"`
}

// DefaultLivePrediction is the form's initial state.
func DefaultLivePrediction() LivePredictionRequest {
	return LivePredictionRequest{
		OrderVolume:           120,
		WarehouseTime:         6,
		ShipmentDistance:      320,
		TrafficLevel:          "medium",
		WeatherIndicator:      "clear",
		HistoricalPerformance: 0.82,
	}
}

type Prediction struct {
	PredictedClassID int                `json:"predicted_class_id"`
	PredictedLabel   string             `json:"predicted_label"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
}

type BasicStats struct {
	AvgOrderVolume      float64 `json:"avg_order_volume"`
	AvgWarehouseTime    float64 `json:"avg_warehouse_time"`
	AvgShipmentDistance float64 `json:"avg_shipment_distance"`
}

type UploadSummary struct {
	Rows              int              `json:"rows"`
	Columns           []string         `json:"columns"`
	Preview           []map[string]any `json:"preview"`
	PredictionSummary map[string]int   `json:"prediction_summary"`
	BasicStats        BasicStats       `json:"basic_stats"`
}

type AboutModel struct {
	Name               string   `json:"name"`
	Algorithm          string   `json:"algorithm"`
	Classes            []string `json:"classes"`
	Inputs             []string `json:"inputs"`
	EngineeredFeatures []string `json:"engineered_features"`
}

type ReportSummary struct {
	RiskSummary       map[string]int    `json:"risk_summary"`
	ModelSummary      AboutModel        `json:"model_summary"`
	FeatureImpact     []FeatureImpact   `json:"feature_impact"`
	ClassDistribution ClassDistribution `json:"class_distribution"`
}
