package quotemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tickfolio/internal/application/port"
	"tickfolio/internal/domain"
)

// HTTP resolves metadata from a Yahoo-style quote endpoint:
// GET <url>?symbols=A,B -> {"quoteResponse":{"result":[...]}}
type HTTP struct {
	baseURL string
	client  *http.Client
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol           string `json:"symbol"`
			ShortName        string `json:"shortName"`
			LongName         string `json:"longName"`
			Currency         string `json:"currency"`
			FullExchangeName string `json:"fullExchangeName"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimSpace(baseURL),
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Resolve(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]domain.QuoteMeta, error) {
	if len(symbols) == 0 {
		return map[domain.Symbol]domain.QuoteMeta{}, nil
	}

	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = string(s)
	}
	u, err := url.Parse(h.baseURL)
	if err != nil {
		return nil, fmt.Errorf("meta url: %w", err)
	}
	q := u.Query()
	q.Set("symbols", strings.Join(names, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meta request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("meta api error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("meta decode: %w", err)
	}
	if e := result.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("meta api error: %s %s", e.Code, e.Description)
	}

	got := make(map[domain.Symbol]domain.QuoteMeta, len(result.QuoteResponse.Result))
	for _, r := range result.QuoteResponse.Result {
		sym := domain.NormalizeSymbol(r.Symbol)
		// minor units come back mixed case (GBp, ZAc) and must not parse as the major unit
		if r.Currency != strings.ToUpper(r.Currency) {
			return nil, fmt.Errorf("%w: %s quoted in %q", domain.ErrUnsupportedCurrency, sym, r.Currency)
		}
		cur, err := domain.ParseCurrency(r.Currency)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		name := r.LongName
		if name == "" {
			name = r.ShortName
		}
		if name == "" {
			name = string(sym)
		}
		got[sym] = domain.QuoteMeta{Symbol: sym, Name: name, Currency: cur, Exchange: r.FullExchangeName}
	}

	out := make(map[domain.Symbol]domain.QuoteMeta, len(symbols))
	for _, s := range symbols {
		m, ok := got[s]
		if !ok {
			return nil, fmt.Errorf("%w: %s not known to %s", domain.ErrUnknownSymbol, s, u.Host)
		}
		out[s] = m
	}
	log.Info().Int("symbols", len(out)).Str("host", u.Host).Msg("quote metadata resolved")
	return out, nil
}

var _ port.MetaResolver = (*HTTP)(nil)
