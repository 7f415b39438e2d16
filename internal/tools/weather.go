// Package tools provides the example tools the agent commands expose
// to the model. They run against small in-process datasets so every
// example works offline and deterministically.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agentflow/internal/llm"
)

const WeatherToolName = "get_weather"

// WeatherTool reports current conditions for a city from a fixed
// dataset, with a plausible fallback for unknown cities.
type WeatherTool struct{}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{}
}

type weatherReport struct {
	City       string  `json:"city"`
	TempC      float64 `json:"temperature_c"`
	Conditions string  `json:"conditions"`
	WindKPH    float64 `json:"wind_kph"`
	Humidity   int     `json:"humidity_pct"`
}

var weatherData = map[string]weatherReport{
	"london":        {City: "London", TempC: 14.0, Conditions: "overcast", WindKPH: 19.0, Humidity: 78},
	"paris":         {City: "Paris", TempC: 18.5, Conditions: "partly cloudy", WindKPH: 12.0, Humidity: 62},
	"tokyo":         {City: "Tokyo", TempC: 26.0, Conditions: "humid, light rain", WindKPH: 8.0, Humidity: 85},
	"new york":      {City: "New York", TempC: 22.0, Conditions: "clear", WindKPH: 15.0, Humidity: 55},
	"san francisco": {City: "San Francisco", TempC: 16.0, Conditions: "fog", WindKPH: 22.0, Humidity: 81},
	"sydney":        {City: "Sydney", TempC: 21.0, Conditions: "sunny", WindKPH: 17.0, Humidity: 48},
}

func (t *WeatherTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WeatherToolName,
		Description: "Get the current weather for a city. Returns temperature, conditions, wind, and humidity.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{
					"type":        "string",
					"description": "The city name, e.g. \"Paris\"",
				},
			},
			"required":             []string{"city"},
			"additionalProperties": false,
		},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse get_weather args: %w", err)
	}
	if payload.City == "" {
		return "", fmt.Errorf("city is required")
	}

	report, ok := weatherData[strings.ToLower(strings.TrimSpace(payload.City))]
	if !ok {
		report = weatherReport{
			City:       payload.City,
			TempC:      19.0,
			Conditions: "mild",
			WindKPH:    10.0,
			Humidity:   60,
		}
	}

	out, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
