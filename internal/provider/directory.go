package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/saviobatista/flightwatch/internal/types"
)

// Directory lookups return nil, nil when the provider has no record

type airLabsAirport struct {
	Name        string `json:"name"`
	IATA        string `json:"iata_code"`
	ICAO        string `json:"icao_code"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Timezone    string `json:"timezone"`
}

type airLabsAirline struct {
	Name string `json:"name"`
	IATA string `json:"iata_code"`
	ICAO string `json:"icao_code"`
}

// LookupAirport queries the AirLabs airports database
func (p *AirLabs) LookupAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}

	var rows []airLabsAirport
	found, err := p.call(ctx, "airports", url.Values{"iata_code": {code}}, &rows)
	if err != nil || !found {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.IATA, code) {
			return &types.AirportInfo{
				IATA:    code,
				Name:    r.Name,
				City:    r.City,
				TZ:      r.Timezone,
				Country: r.CountryCode,
				Source:  NameAirLabs,
			}, nil
		}
	}
	return nil, nil
}

// LookupAirline queries the AirLabs airlines database
func (p *AirLabs) LookupAirline(ctx context.Context, iata string) (*types.AirlineInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}

	var rows []airLabsAirline
	found, err := p.call(ctx, "airlines", url.Values{"iata_code": {code}}, &rows)
	if err != nil || !found {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.IATA, code) && r.Name != "" {
			return &types.AirlineInfo{IATA: code, ICAO: r.ICAO, Name: r.Name, Source: NameAirLabs}, nil
		}
	}
	return nil, nil
}

type asAirport struct {
	AirportName  string `json:"airport_name"`
	IATA         string `json:"iata_code"`
	Timezone     string `json:"timezone"`
	CountryName  string `json:"country_name"`
	CityIATACode string `json:"city_iata_code"`
}

type asAirline struct {
	AirlineName string `json:"airline_name"`
	IATA        string `json:"iata_code"`
	ICAO        string `json:"icao_code"`
}

// LookupAirport searches Aviationstack airports by code
func (p *Aviationstack) LookupAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}

	var rows []asAirport
	if err := p.call(ctx, "airports", url.Values{"search": {code}}, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.IATA, code) {
			return &types.AirportInfo{
				IATA:    code,
				Name:    r.AirportName,
				TZ:      r.Timezone,
				Country: r.CountryName,
				Source:  NameAviationstack,
			}, nil
		}
	}
	return nil, nil
}

// LookupAirline searches Aviationstack airlines by code
func (p *Aviationstack) LookupAirline(ctx context.Context, iata string) (*types.AirlineInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}

	var rows []asAirline
	if err := p.call(ctx, "airlines", url.Values{"search": {code}}, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if strings.EqualFold(r.IATA, code) && r.AirlineName != "" {
			return &types.AirlineInfo{IATA: code, ICAO: r.ICAO, Name: r.AirlineName, Source: NameAviationstack}, nil
		}
	}
	return nil, nil
}

type fr24Airport struct {
	Name     string `json:"name"`
	IATA     string `json:"iata"`
	City     string `json:"city"`
	Timezone struct {
		Name string `json:"name"`
	} `json:"timezone"`
	Country struct {
		Name string `json:"name"`
	} `json:"country"`
}

// LookupAirport reads the FR24 static airport record
func (p *Flightradar24) LookupAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil, nil
	}

	var r fr24Airport
	if err := p.getJSON(ctx, "/api/static/airports/"+url.PathEscape(code)+"/full", nil, &r); err != nil {
		if KindOf(err) == KindNoMatch {
			return nil, nil
		}
		return nil, err
	}
	if r.Name == "" {
		return nil, nil
	}
	return &types.AirportInfo{
		IATA:    code,
		Name:    r.Name,
		City:    r.City,
		TZ:      r.Timezone.Name,
		Country: r.Country.Name,
		Source:  NameFlightradar24,
	}, nil
}
