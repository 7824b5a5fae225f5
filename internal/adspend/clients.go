package adspend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const maxProviderBody = 1 << 20

// spendEndpoints are package-level so tests can point clients at a local
// server. Production values never change at runtime.
var spendEndpoints = map[enums.Platform]string{
	enums.PlatformMeta:     "https://graph.facebook.com/v18.0",
	enums.PlatformTikTok:   "https://business-api.tiktok.com/open_api/v1.3",
	enums.PlatformSnapchat: "https://adsapi.snapchat.com/v1",
}

// DailySpend is one day of spend reported by an ad platform, bucketed on the
// spend date the platform reports.
type DailySpend struct {
	Date        time.Time
	Spend       decimal.Decimal
	Currency    string
	Impressions int64
	Clicks      int64
}

// SpendClient pulls daily spend for one ad account. Implementations never
// retry; a 401 surfaces as UNAUTHORIZED so the caller can refresh and retry.
type SpendClient interface {
	Platform() enums.Platform
	DailySpend(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]DailySpend, error)
}

// NewClients builds the spend clients for every platform with a spend API.
func NewClients(httpClient *http.Client) []SpendClient {
	return []SpendClient{
		&metaClient{http: httpClient},
		&tiktokClient{http: httpClient},
		&snapchatClient{http: httpClient},
	}
}

type metaClient struct {
	http *http.Client
}

func (c *metaClient) Platform() enums.Platform { return enums.PlatformMeta }

// DailySpend pulls the insights report with a one-day time increment.
func (c *metaClient) DailySpend(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]DailySpend, error) {
	endpoint := fmt.Sprintf("%s/act_%s/insights", spendEndpoints[enums.PlatformMeta], accountID)
	params := url.Values{
		"access_token":   {accessToken},
		"fields":         {"spend,impressions,clicks"},
		"time_range":     {fmt.Sprintf(`{"since":"%s","until":"%s"}`, from.Format("2006-01-02"), to.Format("2006-01-02"))},
		"time_increment": {"1"},
	}

	var payload struct {
		Data []struct {
			DateStart   string      `json:"date_start"`
			Spend       string      `json:"spend"`
			Impressions json.Number `json:"impressions"`
			Clicks      json.Number `json:"clicks"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, endpoint+"?"+params.Encode(), nil, &payload); err != nil {
		return nil, err
	}

	rows := make([]DailySpend, 0, len(payload.Data))
	for _, day := range payload.Data {
		date, err := time.Parse("2006-01-02", day.DateStart)
		if err != nil {
			continue
		}
		rows = append(rows, DailySpend{
			Date:        date,
			Spend:       parseSpend(day.Spend),
			Currency:    "USD",
			Impressions: numberInt(day.Impressions),
			Clicks:      numberInt(day.Clicks),
		})
	}
	return rows, nil
}

func (c *metaClient) getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	return getJSON(ctx, c.http, enums.PlatformMeta, rawURL, headers, out)
}

type tiktokClient struct {
	http *http.Client
}

func (c *tiktokClient) Platform() enums.Platform { return enums.PlatformTikTok }

// DailySpend pulls the integrated report grouped by stat day. TikTok carries
// the access token in a header, not the query.
func (c *tiktokClient) DailySpend(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]DailySpend, error) {
	endpoint := spendEndpoints[enums.PlatformTikTok] + "/report/integrated/get/"
	params := url.Values{
		"advertiser_id": {accountID},
		"report_type":   {"BASIC"},
		"data_level":    {"AUCTION_ADVERTISER"},
		"dimensions":    {`["stat_time_day"]`},
		"metrics":       {`["spend","impressions","clicks"]`},
		"start_date":    {from.Format("2006-01-02")},
		"end_date":      {to.Format("2006-01-02")},
	}

	var payload struct {
		Data struct {
			List []struct {
				Dimensions struct {
					StatTimeDay string `json:"stat_time_day"`
				} `json:"dimensions"`
				Metrics struct {
					Spend       string      `json:"spend"`
					Impressions json.Number `json:"impressions"`
					Clicks      json.Number `json:"clicks"`
				} `json:"metrics"`
			} `json:"list"`
		} `json:"data"`
	}
	headers := map[string]string{"Access-Token": accessToken}
	if err := getJSON(ctx, c.http, enums.PlatformTikTok, endpoint+"?"+params.Encode(), headers, &payload); err != nil {
		return nil, err
	}

	rows := make([]DailySpend, 0, len(payload.Data.List))
	for _, entry := range payload.Data.List {
		date, err := time.Parse("2006-01-02 15:04:05", entry.Dimensions.StatTimeDay)
		if err != nil {
			if date, err = time.Parse("2006-01-02", entry.Dimensions.StatTimeDay); err != nil {
				continue
			}
		}
		rows = append(rows, DailySpend{
			Date:        date,
			Spend:       parseSpend(entry.Metrics.Spend),
			Currency:    "USD",
			Impressions: numberInt(entry.Metrics.Impressions),
			Clicks:      numberInt(entry.Metrics.Clicks),
		})
	}
	return rows, nil
}

type snapchatClient struct {
	http *http.Client
}

func (c *snapchatClient) Platform() enums.Platform { return enums.PlatformSnapchat }

// DailySpend pulls day-granularity stats for the ad account. Spend arrives in
// micros.
func (c *snapchatClient) DailySpend(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]DailySpend, error) {
	endpoint := fmt.Sprintf("%s/adaccounts/%s/stats", spendEndpoints[enums.PlatformSnapchat], accountID)
	params := url.Values{
		"granularity": {"DAY"},
		"fields":      {"spend,impressions,swipes"},
		"start_time":  {from.Format("2006-01-02")},
		"end_time":    {to.AddDate(0, 0, 1).Format("2006-01-02")},
	}

	var payload struct {
		TimeseriesStats []struct {
			TimeseriesStat struct {
				Timeseries []struct {
					StartTime string `json:"start_time"`
					Stats     struct {
						Spend       int64       `json:"spend"`
						Impressions json.Number `json:"impressions"`
						Swipes      json.Number `json:"swipes"`
					} `json:"stats"`
				} `json:"timeseries"`
			} `json:"timeseries_stat"`
		} `json:"timeseries_stats"`
	}
	headers := map[string]string{"Authorization": "Bearer " + accessToken}
	if err := getJSON(ctx, c.http, enums.PlatformSnapchat, endpoint+"?"+params.Encode(), headers, &payload); err != nil {
		return nil, err
	}

	var rows []DailySpend
	for _, stat := range payload.TimeseriesStats {
		for _, point := range stat.TimeseriesStat.Timeseries {
			date, err := time.Parse(time.RFC3339, point.StartTime)
			if err != nil {
				if date, err = time.Parse("2006-01-02", point.StartTime); err != nil {
					continue
				}
			}
			spend := decimal.NewFromInt(point.Stats.Spend).Div(decimal.NewFromInt(1_000_000))
			rows = append(rows, DailySpend{
				Date:        date.UTC(),
				Spend:       spend,
				Currency:    "USD",
				Impressions: numberInt(point.Stats.Impressions),
				Clicks:      numberInt(point.Stats.Swipes),
			})
		}
	}
	return rows, nil
}

func getJSON(ctx context.Context, client *http.Client, platform enums.Platform, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build spend request")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, fmt.Sprintf("%s spend request failed", platform))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "read spend response")
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, fmt.Sprintf("%s rejected the access token", platform)).
			WithDetails(string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeProvider, fmt.Sprintf("%s spend request returned %d", platform, resp.StatusCode)).
			WithDetails(string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "decode spend response")
	}
	return nil
}

func parseSpend(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func numberInt(value json.Number) int64 {
	parsed, err := value.Int64()
	if err != nil {
		// some platforms report counters as floats
		if f, ferr := value.Float64(); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return parsed
}
