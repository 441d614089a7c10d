// Package gfs fetches raw GFS cycle data through the NOMADS GRIB filter.
package gfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

// DefaultBaseURL is the NOMADS GRIB filter endpoint for the 1.0 degree
// GFS grid.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_1p00.pl"

// Client implements the wind.GribSource interface against NOMADS. One
// request downloads the surface wind fields (10 m UGRD/VGRD plus surface
// temperature) for the whole globe, analysis step only.
type Client struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a NOMADS client. An empty baseURL selects the public
// NOMADS endpoint.
func NewClient(client *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nomads",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		name:    "nomads",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (g *Client) Name() string {
	return g.name
}

// Fetch downloads the raw GRIB2 data for one cycle. While the cycle is
// not published yet the filter answers 404, which is reported as
// wind.ErrNotPublished without retries.
func (g *Client) Fetch(ctx context.Context, c wind.Cycle) ([]byte, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("file", fmt.Sprintf("gfs.t%02dz.pgrb2.1p00.f000", c.Time().Hour()))
		values.Set("lev_10_m_above_ground", "on")
		values.Set("lev_surface", "on")
		values.Set("var_TMP", "on")
		values.Set("var_UGRD", "on")
		values.Set("var_VGRD", "on")
		values.Set("leftlon", "0")
		values.Set("rightlon", "360")
		values.Set("toplat", "90")
		values.Set("bottomlat", "-90")
		values.Set("dir", fmt.Sprintf("/gfs.%s/%02d/atmos", c.Time().Format("20060102"), c.Time().Hour()))

		u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("gfs: fetch cycle %s: %w", c.Stamp(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("gfs: cycle %s: %w", c.Stamp(), wind.ErrNotPublished)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gfs: read cycle %s: %w", c.Stamp(), err)
	}
	return data, nil
}
