package remote

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/models"
)

// DefaultMarvelBaseURL is the public Marvel Comics API.
const DefaultMarvelBaseURL = "https://gateway.marvel.com/v1/public"

// MarvelOptions configures a Marvel client.
type MarvelOptions struct {
	BaseURL       string
	PublicKey     string
	PrivateKey    string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Marvel fetches characters from the Marvel Comics API.
type Marvel struct {
	baseURL    string
	publicKey  string
	privateKey string
	client     *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewMarvel creates a client. Zero option values fall back to defaults.
func NewMarvel(opts MarvelOptions) *Marvel {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMarvelBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Marvel{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		publicKey:  opts.PublicKey,
		privateKey: opts.PrivateKey,
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, opts.Burst),
		now:        time.Now,
	}
}

// Name identifies the source in logs.
func (m *Marvel) Name() string { return "marvel" }

// marvelEnvelope is the common response wrapper.
type marvelEnvelope[T any] struct {
	Code int `json:"code"`
	Data struct {
		Offset  int `json:"offset"`
		Limit   int `json:"limit"`
		Total   int `json:"total"`
		Count   int `json:"count"`
		Results []T `json:"results"`
	} `json:"data"`
}

// marvelCharacter mirrors the wire format; "modified" uses a numeric zone
// offset without a colon, which time.Time can't decode directly.
type marvelCharacter struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Modified    string            `json:"modified"`
	Thumbnail   *models.Thumbnail `json:"thumbnail"`
	ResourceURI string            `json:"resourceURI"`
	Comics      models.Collection `json:"comics"`
	Series      models.Collection `json:"series"`
	Stories     models.Collection `json:"stories"`
	Events      models.Collection `json:"events"`
	URLs        []models.URL      `json:"urls"`
}

type marvelComic struct {
	ID          int               `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Thumbnail   *models.Thumbnail `json:"thumbnail"`
}

var modifiedLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

func parseModified(s string) time.Time {
	for _, layout := range modifiedLayouts {
		if t, err := time.Parse(layout, s); err == nil && t.Year() > 0 {
			return t
		}
	}
	return time.Time{}
}

func (c marvelCharacter) toModel() models.Character {
	return models.Character{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Modified:    parseModified(c.Modified),
		Thumbnail:   c.Thumbnail,
		ResourceURI: c.ResourceURI,
		Comics:      c.Comics,
		Series:      c.Series,
		Stories:     c.Stories,
		Events:      c.Events,
		URLs:        c.URLs,
		Origin:      models.OriginRemote,
	}
}

// authParams returns the apikey/ts/hash triple the API requires on every call.
func (m *Marvel) authParams() url.Values {
	ts := strconv.FormatInt(m.now().UnixMilli(), 10)
	sum := md5.Sum([]byte(ts + m.privateKey + m.publicKey))
	q := url.Values{}
	q.Set("apikey", m.publicKey)
	q.Set("ts", ts)
	q.Set("hash", hex.EncodeToString(sum[:]))
	return q
}

// FetchPage implements Source.
func (m *Marvel) FetchPage(ctx context.Context, limit, offset int, nameStartsWith string) (models.Page, error) {
	q := m.authParams()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if nameStartsWith != "" {
		q.Set("nameStartsWith", nameStartsWith)
	}

	var env marvelEnvelope[marvelCharacter]
	if err := m.get(ctx, "/characters", q, &env); err != nil {
		return models.Page{}, err
	}

	results := make([]models.Character, 0, len(env.Data.Results))
	for _, c := range env.Data.Results {
		results = append(results, c.toModel())
	}
	return models.Page{Results: results, Total: env.Data.Total}, nil
}

// FetchByID implements Source.
func (m *Marvel) FetchByID(ctx context.Context, id int) (models.Character, error) {
	var env marvelEnvelope[marvelCharacter]
	if err := m.get(ctx, "/characters/"+strconv.Itoa(id), m.authParams(), &env); err != nil {
		return models.Character{}, err
	}
	if len(env.Data.Results) == 0 {
		return models.Character{}, fmt.Errorf("marvel: character %d: %w", id, apperr.ErrNotFound)
	}
	return env.Data.Results[0].toModel(), nil
}

// FetchComics implements Source.
func (m *Marvel) FetchComics(ctx context.Context, id, limit int) ([]models.ComicSummary, error) {
	q := m.authParams()
	q.Set("limit", strconv.Itoa(limit))

	var env marvelEnvelope[marvelComic]
	if err := m.get(ctx, "/characters/"+strconv.Itoa(id)+"/comics", q, &env); err != nil {
		return nil, err
	}
	out := make([]models.ComicSummary, 0, len(env.Data.Results))
	for _, c := range env.Data.Results {
		s := models.ComicSummary{ID: c.ID, Title: c.Title, Thumbnail: c.Thumbnail}
		if c.Description != nil {
			s.Description = *c.Description
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Marvel) get(ctx context.Context, path string, q url.Values, dst any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("marvel: rate limit wait: %w: %w", apperr.ErrRemoteUnavailable, err)
	}

	u := m.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("marvel: build request: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("marvel: request: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("marvel: read body: %w: %w", apperr.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("marvel: %s: %w", path, apperr.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("marvel: status %d: %s: %w", resp.StatusCode, truncate(body, 200), apperr.ErrRemoteUnavailable)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("marvel: decode: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

var _ Source = (*Marvel)(nil)
