package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"asci-dashboard/internal/api"
	"asci-dashboard/internal/dataset"
)

type loginForm struct {
	username   textinput.Model
	password   textinput.Model
	focused    int
	submitting bool
	err        string
}

func newInput(placeholder, value string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 32
	ti.Prompt = "› "
	ti.SetValue(value)
	return ti
}

func newLoginForm() loginForm {
	password := newInput("password", defaultPassword, 128)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	return loginForm{
		username: newInput("username", defaultUsername, 64),
		password: password,
	}
}

func (f *loginForm) inputs() []*textinput.Model {
	return []*textinput.Model{&f.username, &f.password}
}

func (f *loginForm) focus() tea.Cmd {
	return focusAt(f.inputs(), f.focused)
}

func (f *loginForm) blur() {
	for _, in := range f.inputs() {
		in.Blur()
	}
}

func (m Model) updateLogin(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.login.submitting {
		return m, nil
	}
	switch msg.String() {
	case "tab", "down":
		m.login.focused = (m.login.focused + 1) % 2
		return m, m.login.focus()
	case "shift+tab", "up":
		m.login.focused = (m.login.focused + 1) % 2
		return m, m.login.focus()
	case "enter":
		username := strings.TrimSpace(m.login.username.Value())
		password := m.login.password.Value()
		if username == "" || password == "" {
			m.login.err = "Username and password are required"
			return m, nil
		}
		m.login.submitting = true
		m.login.err = ""
		return m, loginCmd(m.ctx, m.opts.Client, m.session, username, password)
	}
	var cmd tea.Cmd
	if m.login.focused == 0 {
		m.login.username, cmd = m.login.username.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

// Prediction form fields, in focus order.
const (
	fieldOrderVolume = iota
	fieldWarehouseTime
	fieldShipmentDistance
	fieldTrafficLevel
	fieldWeatherIndicator
	fieldHistoricalPerformance
	predictFieldCount
)

var predictLabels = [predictFieldCount]string{
	"Order volume",
	"Warehouse time",
	"Shipment distance",
	"Traffic level",
	"Weather indicator",
	"Historical performance",
}

type predictForm struct {
	orderVolume           textinput.Model
	warehouseTime         textinput.Model
	shipmentDistance      textinput.Model
	historicalPerformance textinput.Model
	traffic               int
	weather               int

	focused    int
	submitting bool
	err        string
	result     *api.Prediction
}

func newPredictForm() predictForm {
	d := api.DefaultLivePrediction()
	return predictForm{
		orderVolume:           newInput("order_volume", formatNumber(d.OrderVolume), 12),
		warehouseTime:         newInput("warehouse_time", formatNumber(d.WarehouseTime), 12),
		shipmentDistance:      newInput("shipment_distance", formatNumber(d.ShipmentDistance), 12),
		historicalPerformance: newInput("historical_performance", formatNumber(d.HistoricalPerformance), 12),
		traffic:               indexOf(api.TrafficLevels, d.TrafficLevel),
		weather:               indexOf(api.WeatherIndicators, d.WeatherIndicator),
	}
}

// input returns the text input for a field, or nil for choice fields.
func (f *predictForm) input(field int) *textinput.Model {
	switch field {
	case fieldOrderVolume:
		return &f.orderVolume
	case fieldWarehouseTime:
		return &f.warehouseTime
	case fieldShipmentDistance:
		return &f.shipmentDistance
	case fieldHistoricalPerformance:
		return &f.historicalPerformance
	}
	return nil
}

func (f *predictForm) focus() tea.Cmd {
	f.blur()
	if in := f.input(f.focused); in != nil {
		return in.Focus()
	}
	return nil
}

func (f *predictForm) blur() {
	for field := 0; field < predictFieldCount; field++ {
		if in := f.input(field); in != nil {
			in.Blur()
		}
	}
}

// request parses the form. Numeric fields must be non-negative numbers.
func (f *predictForm) request() (api.LivePredictionRequest, error) {
	req := api.LivePredictionRequest{
		TrafficLevel:     api.TrafficLevels[f.traffic],
		WeatherIndicator: api.WeatherIndicators[f.weather],
	}
	targets := map[int]*float64{
		fieldOrderVolume:           &req.OrderVolume,
		fieldWarehouseTime:         &req.WarehouseTime,
		fieldShipmentDistance:      &req.ShipmentDistance,
		fieldHistoricalPerformance: &req.HistoricalPerformance,
	}
	for field := 0; field < predictFieldCount; field++ {
		dst, ok := targets[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(f.input(field).Value()), 64)
		if err != nil || v < 0 {
			return api.LivePredictionRequest{}, fmt.Errorf("%s must be a non-negative number", predictLabels[field])
		}
		*dst = v
	}
	return req, nil
}

func (m Model) updatePrediction(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := &m.predict
	if f.submitting {
		return m, nil
	}
	switch msg.String() {
	case "down":
		f.focused = (f.focused + 1) % predictFieldCount
		return m, f.focus()
	case "up":
		f.focused = (f.focused + predictFieldCount - 1) % predictFieldCount
		return m, f.focus()
	case "left", "right":
		step := 1
		if msg.String() == "left" {
			step = -1
		}
		switch f.focused {
		case fieldTrafficLevel:
			f.traffic = cycle(f.traffic, step, len(api.TrafficLevels))
			return m, nil
		case fieldWeatherIndicator:
			f.weather = cycle(f.weather, step, len(api.WeatherIndicators))
			return m, nil
		}
	case "enter":
		req, err := f.request()
		if err != nil {
			f.err = err.Error()
			return m, nil
		}
		f.submitting = true
		f.err = ""
		return m, predictCmd(m.ctx, m.opts.Client, req)
	}
	if in := f.input(f.focused); in != nil {
		var cmd tea.Cmd
		*in, cmd = in.Update(msg)
		return m, cmd
	}
	return m, nil
}

type uploadForm struct {
	path       textinput.Model
	submitting bool
	err        string
	check      *dataset.Summary
	result     *api.UploadSummary
}

func newUploadForm() uploadForm {
	path := newInput("path/to/orders.csv", "", 1024)
	path.Width = 48
	return uploadForm{path: path}
}

func (f *uploadForm) focus() tea.Cmd { return f.path.Focus() }

func (f *uploadForm) blur() { f.path.Blur() }

func (m Model) updateUpload(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := &m.upload
	if f.submitting {
		return m, nil
	}
	if msg.String() == "enter" {
		if !m.opts.AllowFiles {
			f.err = "File upload is not available in remote sessions"
			return m, nil
		}
		path := strings.TrimSpace(f.path.Value())
		if path == "" {
			f.err = "Choose a CSV file to upload"
			return m, nil
		}
		f.submitting = true
		f.err = ""
		return m, uploadCmd(m.ctx, m.opts.Client, path)
	}
	var cmd tea.Cmd
	f.path, cmd = f.path.Update(msg)
	return m, cmd
}

func focusAt(inputs []*textinput.Model, idx int) tea.Cmd {
	var cmd tea.Cmd
	for i, in := range inputs {
		if i == idx {
			cmd = in.Focus()
			continue
		}
		in.Blur()
	}
	return cmd
}

func cycle(i, step, n int) int {
	return ((i+step)%n + n) % n
}

func indexOf(values []string, v string) int {
	for i, candidate := range values {
		if candidate == v {
			return i
		}
	}
	return 0
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
