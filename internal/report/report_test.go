package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asci-dashboard/internal/api"
)

func sampleSummary() api.ReportSummary {
	return api.ReportSummary{
		RiskSummary: map[string]int{"Delayed": 348, "On-Time": 1476, "At Risk": 576},
		ModelSummary: api.AboutModel{
			Name:      "Delivery Risk Multi-Class Classifier",
			Algorithm: "RandomForestClassifier",
			Classes:   []string{"On-Time", "At Risk", "Delayed"},
		},
		FeatureImpact: []api.FeatureImpact{
			{Feature: "shipment_distance", Importance: 0.31},
			{Feature: "warehouse_time", Importance: 0.22},
		},
		ClassDistribution: api.ClassDistribution{
			BeforeSMOTE: map[string]int{"On-Time": 1200, "At Risk": 400, "Delayed": 200},
			AfterSMOTE:  map[string]int{"On-Time": 1200, "At Risk": 1200, "Delayed": 1200},
		},
	}
}

func TestBuildOrdersRiskClasses(t *testing.T) {
	t.Parallel()

	sections := Build(sampleSummary())
	require.Len(t, sections, 4)

	risk := sections[0]
	assert.Equal(t, "Risk Summary", risk.Heading)
	require.Len(t, risk.Lines, 3)
	assert.Equal(t, Line{Label: "On-Time", Value: "1,476"}, risk.Lines[0])
	assert.Equal(t, "At Risk", risk.Lines[1].Label)
	assert.Equal(t, "Delayed", risk.Lines[2].Label)

	dist := sections[3]
	require.Len(t, dist.Lines, 6)
	assert.Equal(t, "Before SMOTE - On-Time", dist.Lines[0].Label)
	assert.Equal(t, "After SMOTE - Delayed", dist.Lines[5].Label)
}

func TestBuildKeepsUnknownClassesSorted(t *testing.T) {
	t.Parallel()

	s := api.ReportSummary{RiskSummary: map[string]int{"Zeta": 1, "Alpha": 2, "On-Time": 3}}
	lines := Build(s)[0].Lines
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"On-Time", "Alpha", "Zeta"}, []string{lines[0].Label, lines[1].Label, lines[2].Label})
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleSummary()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, Title+"\n"))
	assert.Contains(t, out, "Feature Impact:\n  - shipment_distance: 0.3100\n")
	assert.Contains(t, out, "  - Algorithm: RandomForestClassifier\n")
}

func TestWritePDF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleSummary()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestWritePDFBreaksLongReports(t *testing.T) {
	t.Parallel()

	s := sampleSummary()
	for i := 0; i < 80; i++ {
		s.FeatureImpact = append(s.FeatureImpact, api.FeatureImpact{Feature: fmt.Sprintf("feature_%02d", i), Importance: 0.01})
	}

	var short, long bytes.Buffer
	require.NoError(t, WritePDF(&short, sampleSummary()))
	require.NoError(t, WritePDF(&long, s))

	assert.Equal(t, 1, bytes.Count(short.Bytes(), []byte("/Type /Page\n")))
	assert.GreaterOrEqual(t, bytes.Count(long.Bytes(), []byte("/Type /Page\n")), 2)
}
