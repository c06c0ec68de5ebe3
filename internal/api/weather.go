package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tg_assistant_bot/internal/logging"
)

// Weather is the normalized current-conditions report for a location.
type Weather struct {
	Location        string
	Country         string
	TemperatureC    int
	FeelsLikeC      int
	Description     string
	HumidityPercent int
	WindSpeedKmph   int
}

type textValue struct {
	Value string `json:"value"`
}

type weatherPayload struct {
	CurrentCondition []struct {
		TempC         string      `json:"temp_C"`
		FeelsLikeC    string      `json:"FeelsLikeC"`
		Humidity      string      `json:"humidity"`
		WindspeedKmph string      `json:"windspeedKmph"`
		WeatherDesc   []textValue `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []textValue `json:"areaName"`
		Country  []textValue `json:"country"`
	} `json:"nearest_area"`
}

// Weather fetches current conditions for city from a wttr.in compatible
// provider.
func (s *Service) Weather(ctx context.Context, city string) (Weather, error) {
	failure := fmt.Sprintf("Unable to fetch weather data for %s. Please check the city name and try again.", city)
	log := s.logger.WithFields(logging.Fields{"event": "weather_fetch", "city": city})

	endpoint := s.endpoints.Weather + "/" + url.PathEscape(city) + "?" + url.Values{"format": {"j1"}}.Encode()

	var payload weatherPayload
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		apiErr := classify(err, "Network error: Unable to connect to weather service", failure)
		if errors.Is(apiErr, ErrNetwork) {
			log.Error("network error fetching weather")
		} else {
			log.WithError(err).Error("failed to fetch weather")
		}
		return Weather{}, apiErr
	}

	weather, err := payload.normalize()
	if err != nil {
		log.WithError(err).Error("invalid weather data received")
		return Weather{}, newError(ErrInvalidResponse, failure, err)
	}

	return weather, nil
}

func (p weatherPayload) normalize() (Weather, error) {
	if len(p.CurrentCondition) == 0 {
		return Weather{}, errors.New("missing current_condition")
	}
	if len(p.NearestArea) == 0 {
		return Weather{}, errors.New("missing nearest_area")
	}

	current := p.CurrentCondition[0]
	area := p.NearestArea[0]

	location, err := firstValue(area.AreaName, "areaName")
	if err != nil {
		return Weather{}, err
	}
	country, err := firstValue(area.Country, "country")
	if err != nil {
		return Weather{}, err
	}
	description, err := firstValue(current.WeatherDesc, "weatherDesc")
	if err != nil {
		return Weather{}, err
	}

	w := Weather{
		Location:    location,
		Country:     country,
		Description: description,
	}

	numbers := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"temp_C", current.TempC, &w.TemperatureC},
		{"FeelsLikeC", current.FeelsLikeC, &w.FeelsLikeC},
		{"humidity", current.Humidity, &w.HumidityPercent},
		{"windspeedKmph", current.WindspeedKmph, &w.WindSpeedKmph},
	}
	for _, n := range numbers {
		v, err := strconv.Atoi(strings.TrimSpace(n.raw))
		if err != nil {
			return Weather{}, fmt.Errorf("parse %s: %w", n.name, err)
		}
		*n.dst = v
	}

	return w, nil
}

func firstValue(values []textValue, field string) (string, error) {
	if len(values) == 0 || strings.TrimSpace(values[0].Value) == "" {
		return "", fmt.Errorf("missing %s", field)
	}
	return strings.TrimSpace(values[0].Value), nil
}
