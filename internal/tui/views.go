package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/dataset"
	"asci-dashboard/internal/report"
	"asci-dashboard/internal/theme"
)

const (
	statusLiveOn  = "● LIVE"
	statusLiveOff = "○ LIVE"
	barWidth      = 24
)

// palette holds the lipgloss styles for the applied theme, built per render
// so a theme change shows on the next frame.
type palette struct {
	header, sidebar, active, body, card, prompt, warning lipgloss.Style
	accent, muted, danger, success                       lipgloss.Style
}

func (m Model) palette() palette {
	b := m.opts.Document.Bundle()
	r := m.opts.Renderer
	fg := func(color string) lipgloss.Style {
		return theme.Style{Foreground: color}.Render(r)
	}
	return palette{
		header:  b.Header.Render(r),
		sidebar: b.Sidebar.Render(r),
		active:  b.SidebarActive.Render(r),
		body:    b.Body.Render(r),
		card:    b.Card.Render(r),
		prompt:  b.Prompt.Render(r),
		warning: b.Warning.Render(r),
		accent:  fg(b.Roles.Accent).Bold(true),
		muted:   fg(b.Roles.Muted),
		danger:  fg(b.Roles.Danger).Bold(true),
		success: fg(b.Roles.Success).Bold(true),
	}
}

// View renders header, sidebar with the scrolled body, and footer.
func (m Model) View() string {
	p := m.palette()
	main := m.viewport.View()
	if m.screen != ScreenLogin {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(p), " ", main)
	}
	return strings.Join([]string{
		m.renderHeader(p),
		main,
		m.renderFooter(p),
	}, "\n")
}

func (m Model) renderHeader(p palette) string {
	status := statusLiveOff
	if m.statusBlink {
		status = statusLiveOn
	}
	resolved, _ := m.opts.Document.Attribute()
	user := m.opts.User
	if user == "" {
		user = "local"
	}
	signedIn := "signed out"
	if m.session.LoggedIn() {
		signedIn = "signed in"
	}
	line := fmt.Sprintf(" ASCI // Delivery Risk Intelligence   %s   %s@%s (%s)   theme:%s ", status, user, hostOf(m.opts.Client.BaseURL()), signedIn, resolved)
	return p.header.Width(max(m.width, lipgloss.Width(line))).Render(line)
}

func (m Model) renderSidebar(p palette) string {
	lines := make([]string, 0, screenCount)
	for s := ScreenOverview; s < screenCount; s++ {
		label := fmt.Sprintf(" %d %s", int(s), s)
		style := p.sidebar
		if s == m.screen {
			style = p.active
		}
		lines = append(lines, style.Width(sidebarWidth).Render(truncate(label, sidebarWidth)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderFooter(p palette) string {
	status := ""
	if m.flash != "" {
		style := p.success
		if m.flashErr {
			style = p.danger
		}
		status = style.Render(m.flash)
	}
	return status + "\n" + m.help.View(screenKeys{keyMap: m.keys, screen: m.screen})
}

func (m Model) renderBody() string {
	p := m.palette()
	title := p.accent.Render(m.screen.String())
	var body string
	switch m.screen {
	case ScreenLogin:
		body = m.renderLogin(p)
	case ScreenPrediction:
		body = m.renderPrediction(p)
	case ScreenUpload:
		body = m.renderUpload(p)
	case ScreenSettings:
		body = m.renderSettings(p)
	default:
		body = m.renderData(p)
	}
	return title + "\n\n" + body
}

// renderData shows the loading or error state of data screens before their
// content.
func (m Model) renderData(p palette) string {
	state := m.panels[m.screen]
	switch {
	case state.err != "":
		return p.danger.Render(state.err) + "\n\n" + p.muted.Render("Press ctrl+r to retry.")
	case state.loading || !state.loaded:
		return m.spinner.View() + " Loading..."
	}
	switch m.screen {
	case ScreenOverview:
		return m.renderOverview(p)
	case ScreenAnalytics:
		return m.renderAnalytics(p)
	case ScreenModels:
		return m.renderModels(p)
	case ScreenHistory:
		return m.renderHistory(p)
	case ScreenReports:
		return m.renderReports(p)
	case ScreenAbout:
		return m.renderAbout(p)
	}
	return ""
}

func (m Model) renderLogin(p palette) string {
	var b strings.Builder
	b.WriteString("Sign in to the delivery risk dashboard.\n\n")
	b.WriteString("Username\n" + m.login.username.View() + "\n\n")
	b.WriteString("Password\n" + m.login.password.View() + "\n\n")
	switch {
	case m.login.submitting:
		b.WriteString(m.spinner.View() + " Signing in...")
	case m.login.err != "":
		b.WriteString(p.danger.Render(m.login.err))
	default:
		b.WriteString(p.muted.Render("Press enter to sign in."))
	}
	return b.String()
}

func (m Model) renderOverview(p palette) string {
	o := m.overview
	if o == nil {
		return ""
	}
	k := o.KPIs
	cards := []string{
		kpiCard(p, "Total Orders", count(k.TotalOrders)),
		kpiCard(p, "On-Time", percent(k.OnTimePct)),
		kpiCard(p, "At Risk", percent(k.AtRiskPct)),
		kpiCard(p, "Delayed", percent(k.DelayedPct)),
		kpiCard(p, "Avg Processing", decimal(k.AvgProcessingTime)+" h"),
		kpiCard(p, "Avg Distance", decimal(k.AvgShipmentDistance)+" km"),
	}
	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...) + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...) + "\n\n")

	b.WriteString(p.accent.Render("Risk Distribution") + "\n")
	b.WriteString(strings.Join(distribution(o.RiskDistribution, barWidth), "\n") + "\n\n")

	if len(o.RiskTrend) > 0 {
		b.WriteString(p.accent.Render("Risk Trend") + "\n")
		fmt.Fprintf(&b, "%-10s %9s %9s %9s\n", "Day", api.LabelOnTime, api.LabelAtRisk, api.LabelDelayed)
		for _, row := range o.RiskTrend {
			fmt.Fprintf(&b, "%-10s %9s %9s %9s\n", trendValue(row, "day"), trendValue(row, api.LabelOnTime), trendValue(row, api.LabelAtRisk), trendValue(row, api.LabelDelayed))
		}
		b.WriteString("\n")
	}

	b.WriteString(p.accent.Render("Feature Impact") + "\n")
	b.WriteString(strings.Join(importanceBars(o.FeatureImpact, barWidth), "\n"))
	return b.String()
}

func kpiCard(p palette, label, value string) string {
	return p.card.Padding(0, 1).MarginRight(1).Width(20).Render(label + "\n" + p.accent.Render(value))
}

func (m Model) renderPrediction(p palette) string {
	f := m.predict
	var b strings.Builder
	b.WriteString("Score a single delivery with the live model.\n\n")
	for field := 0; field < predictFieldCount; field++ {
		marker := "  "
		if field == f.focused {
			marker = p.prompt.Render("▸ ")
		}
		var value string
		switch field {
		case fieldTrafficLevel:
			value = choiceView(p, api.TrafficLevels, f.traffic, field == f.focused)
		case fieldWeatherIndicator:
			value = choiceView(p, api.WeatherIndicators, f.weather, field == f.focused)
		default:
			value = f.input(field).View()
		}
		fmt.Fprintf(&b, "%s%-24s %s\n", marker, predictLabels[field], value)
	}
	b.WriteString("\n")

	switch {
	case f.submitting:
		b.WriteString(m.spinner.View() + " Predicting...")
	case f.err != "":
		b.WriteString(p.danger.Render(f.err))
	case f.result != nil:
		r := f.result
		style := p.success
		switch r.PredictedLabel {
		case api.LabelAtRisk:
			style = p.warning
		case api.LabelDelayed:
			style = p.danger
		}
		fmt.Fprintf(&b, "Predicted: %s   Confidence: %s\n\n", style.Render(r.PredictedLabel), ratioPercent(r.Confidence))
		for _, label := range api.OrderedLabels(r.Probabilities) {
			prob := r.Probabilities[label]
			fmt.Fprintf(&b, "%-8s %7s %s\n", label, ratioPercent(prob), bar(prob, 1, barWidth))
		}
	default:
		b.WriteString(p.muted.Render("up/down to move, left/right to change a choice, enter to predict."))
	}
	return b.String()
}

func choiceView(p palette, values []string, selected int, focused bool) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch {
		case i == selected && focused:
			parts[i] = p.active.Render("[" + v + "]")
		case i == selected:
			parts[i] = p.accent.Render("[" + v + "]")
		default:
			parts[i] = p.muted.Render(" " + v + " ")
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderAnalytics(p palette) string {
	a := m.analytics
	if a == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.accent.Render("Confusion Matrix") + " (rows: actual, columns: predicted)\n")
	fmt.Fprintf(&b, "%-10s", "")
	for _, label := range a.ConfusionMatrix.Labels {
		fmt.Fprintf(&b, " %9s", label)
	}
	b.WriteString("\n")
	for i, row := range a.ConfusionMatrix.Values {
		label := ""
		if i < len(a.ConfusionMatrix.Labels) {
			label = a.ConfusionMatrix.Labels[i]
		}
		fmt.Fprintf(&b, "%-10s", label)
		for _, v := range row {
			fmt.Fprintf(&b, " %9s", count(v))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + p.accent.Render("Feature Importance") + "\n")
	b.WriteString(strings.Join(importanceBars(a.FeatureImportance, barWidth), "\n") + "\n\n")

	b.WriteString(p.accent.Render("Class Distribution (before SMOTE)") + "\n")
	b.WriteString(strings.Join(distribution(a.ClassDistribution.BeforeSMOTE, barWidth), "\n") + "\n\n")
	b.WriteString(p.accent.Render("Class Distribution (after SMOTE)") + "\n")
	b.WriteString(strings.Join(distribution(a.ClassDistribution.AfterSMOTE, barWidth), "\n") + "\n")

	if len(a.ProcessingVsRisk) > 0 {
		b.WriteString("\n" + p.accent.Render("Processing and Distance by Class") + "\n")
		fmt.Fprintf(&b, "%-10s %16s %14s\n", "Class", "Avg processing", "Avg distance")
		for _, row := range a.ProcessingVsRisk {
			fmt.Fprintf(&b, "%-10s %16s %14s\n", row.Label, decimal(row.AvgProcessingProxy), decimal(row.AvgDistance))
		}
	}

	if len(a.DistanceVsRisk) > 0 {
		b.WriteString("\n" + p.accent.Render("Distance vs Risk") + fmt.Sprintf(" (%s sampled deliveries)", count(len(a.DistanceVsRisk))) + "\n")
		fmt.Fprintf(&b, "%-10s %8s %14s %16s %s\n", "Class", "Samples", "Avg distance", "Avg complexity", "Distance")
		groups := distanceGroups(a.DistanceVsRisk)
		peak := 0.0
		for _, g := range groups {
			peak = max(peak, g.meanDistance)
		}
		for _, g := range groups {
			fmt.Fprintf(&b, "%-10s %8s %14s %16s %s\n", g.label, count(g.samples), decimal(g.meanDistance), decimal(g.meanComplexity), bar(g.meanDistance, peak, barWidth))
		}
	}
	return b.String()
}

func (m Model) renderModels(p palette) string {
	mm := m.metrics
	if mm == nil {
		return ""
	}
	best, hasBest := mm.Best()
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %10s %10s %12s\n", "Model", "Accuracy", "Macro F1", "Weighted F1")
	for _, model := range mm.Models {
		line := fmt.Sprintf("%-28s %10s %10s %12s", truncate(model.Name, 28), ratioPercent(model.Accuracy), ratioPercent(model.MacroF1), ratioPercent(model.WeightedF1))
		if hasBest && model.Name == best.Name {
			line = p.success.Render(line + "  ★ best")
		}
		b.WriteString(line + "\n")
	}
	if mm.Notes != "" {
		b.WriteString("\n" + p.muted.Render(mm.Notes))
	}
	return b.String()
}

func (m Model) renderHistory(p palette) string {
	h := m.history
	if h == nil {
		return ""
	}
	if len(h.Items) == 0 {
		return p.muted.Render("No predictions yet.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-20s %-12s %-10s %10s\n", "ID", "Time", "User", "Result", "Confidence")
	for _, item := range h.Items {
		fmt.Fprintf(&b, "%-6d %-20s %-12s %-10s %10s\n", item.ID, truncate(item.CreatedAt, 20), truncate(item.Username, 12), item.PredictionLabel, ratioPercent(item.Confidence))
	}
	return b.String()
}

func (m Model) renderUpload(p palette) string {
	f := m.upload
	var b strings.Builder
	b.WriteString("Upload a CSV of deliveries for batch scoring.\n")
	b.WriteString(p.muted.Render("Required columns: "+strings.Join(dataset.RequiredColumns, ", ")) + "\n\n")
	b.WriteString("File\n" + f.path.View() + "\n\n")

	switch {
	case f.submitting:
		b.WriteString(m.spinner.View() + " Processing...")
	case f.err != "":
		b.WriteString(p.danger.Render(f.err))
	case f.result != nil:
		r := f.result
		fmt.Fprintf(&b, "Rows: %s   Columns: %d\n\n", count(r.Rows), len(r.Columns))
		b.WriteString(p.accent.Render("Prediction Summary") + "\n")
		b.WriteString(strings.Join(distribution(r.PredictionSummary, barWidth), "\n") + "\n\n")
		b.WriteString(p.accent.Render("Basic Stats") + "\n")
		fmt.Fprintf(&b, "Avg order volume       %s\n", decimal(r.BasicStats.AvgOrderVolume))
		fmt.Fprintf(&b, "Avg warehouse time     %s\n", decimal(r.BasicStats.AvgWarehouseTime))
		fmt.Fprintf(&b, "Avg shipment distance  %s\n", decimal(r.BasicStats.AvgShipmentDistance))
		if len(r.Preview) > 0 {
			b.WriteString("\n" + p.accent.Render("Preview") + "\n")
			for _, row := range r.Preview {
				cells := make([]string, 0, len(r.Columns))
				for _, col := range r.Columns {
					cells = append(cells, anyString(row[col]))
				}
				b.WriteString(strings.Join(cells, "  ") + "\n")
			}
		}
	default:
		b.WriteString(p.muted.Render("Enter a path and press enter to upload."))
	}
	return b.String()
}

func (m Model) renderReports(p palette) string {
	if m.summary == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.muted.Render("Press p to save "+report.DefaultFilename+".") + "\n")
	for _, sec := range report.Build(*m.summary) {
		b.WriteString("\n" + p.accent.Render(sec.Heading) + "\n")
		for _, l := range sec.Lines {
			fmt.Fprintf(&b, "  %s: %s\n", l.Label, l.Value)
		}
	}
	return b.String()
}

func (m Model) renderAbout(p palette) string {
	a := m.about
	if a == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name:       %s\n", a.Name)
	fmt.Fprintf(&b, "Algorithm:  %s\n", a.Algorithm)
	fmt.Fprintf(&b, "Classes:    %s\n", strings.Join(a.Classes, ", "))
	b.WriteString("\n" + p.accent.Render("Inputs") + "\n")
	for _, in := range a.Inputs {
		b.WriteString("  - " + in + "\n")
	}
	if len(a.EngineeredFeatures) > 0 {
		b.WriteString("\n" + p.accent.Render("Engineered Features") + "\n")
		for _, f := range a.EngineeredFeatures {
			b.WriteString("  - " + f + "\n")
		}
	}
	return b.String()
}

func (m Model) renderSettings(p palette) string {
	mgr := m.opts.Theme
	stored := mgr.GetStoredMode()
	resolved, _ := m.opts.Document.Attribute()

	var b strings.Builder
	b.WriteString(p.accent.Render("Theme") + "\n")
	for _, mode := range theme.Modes() {
		marker := "( )"
		if mode == stored {
			marker = "(•)"
		}
		fmt.Fprintf(&b, "  %s %s\n", marker, mode.Label())
	}
	fmt.Fprintf(&b, "\nApplied theme: %s\n", resolved)
	b.WriteString(p.muted.Render("Corporate follows the host's light/dark preference.") + "\n\n")

	b.WriteString(p.accent.Render("Backend") + "\n")
	fmt.Fprintf(&b, "  API:          %s\n", m.opts.Client.BaseURL())
	model := m.modelName
	if model == "" {
		model = m.spinner.View()
	}
	fmt.Fprintf(&b, "  Active model: %s\n", model)
	return b.String()
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return string(r[:min(n, len(r))])
	}
	return string(r[:n-1]) + "…"
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}
