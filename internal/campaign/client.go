package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"keycards/entity"
	"keycards/internal/config"
	"keycards/lib/sl"
)

// Signer is the external fingerprint service: activity URL in, signed
// token out.
type Signer interface {
	Sign(ctx context.Context, activityUrl string) (string, error)
}

// Client acquires coupons from one configured campaign source. It
// absorbs every transport, upstream and parse fault into its retry
// budget and always resolves to a (possibly empty) attempt record;
// nothing escapes its boundary as an error.
type Client struct {
	cfg    config.SourceConfig
	signer Signer
	hc     *http.Client
	policy RetryPolicy
	pick   func(n int) int
	log    *slog.Logger
}

func NewClient(cfg config.SourceConfig, signer Signer, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		signer: signer,
		hc:     &http.Client{Timeout: timeout},
		policy: RetryPolicy{MaxAttempts: cfg.MaxRetries + 1},
		pick:   rand.Intn,
		log:    logger.With(sl.Module("campaign"), sl.Source(cfg.Name)),
	}
}

func (c *Client) Name() string {
	return c.cfg.Name
}

// Acquire runs the acquisition protocol against this source with the
// bearer's credential.
func (c *Client) Acquire(ctx context.Context, credential string) entity.AcquisitionAttempt {
	log := c.log.With(sl.Secret("credential", credential))

	var coupons []entity.Coupon
	attempts, ok := c.policy.Run(ctx, func(n int) Result {
		got, err := c.attempt(ctx, credential)
		if err != nil {
			log.Warn("acquisition attempt failed",
				slog.Int("attempt", n),
				sl.Err(err))
			return Retry
		}
		if len(got) == 0 {
			log.Debug("acquisition attempt returned no coupons", slog.Int("attempt", n))
			return Retry
		}
		coupons = got
		return Success
	})

	attempt := entity.AcquisitionAttempt{
		Source:  c.cfg.Name,
		Coupons: coupons,
		Outcome: entity.OutcomeEmpty,
	}
	if attempts > 0 {
		attempt.RetriesUsed = attempts - 1
	}
	if ok {
		attempt.Outcome = entity.OutcomeSuccess
	}
	log.Debug("acquisition finished",
		slog.Int("attempts", attempts),
		slog.Int("coupons", len(coupons)))
	return attempt
}

func (c *Client) attempt(ctx context.Context, credential string) ([]entity.Coupon, error) {
	activityUrl := c.activityUrl()
	token, err := c.signer.Sign(ctx, activityUrl)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	if c.cfg.LoginEndpoint != "" {
		if err = c.login(ctx, credential); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}

	payload := map[string]interface{}{
		"actualLatitude":                 0,
		"actualLongitude":                0,
		"ctype":                          "h5",
		"app":                            -1,
		"platform":                       3,
		"couponConfigIdOrderCommaString": c.cfg.CouponConfigIds,
		"couponAllConfigIdOrderString":   c.cfg.CouponConfigIds,
		"gundamId":                       c.cfg.GundamId,
		"instanceId":                     c.cfg.InstanceId,
		"h5Fingerprint":                  token,
		"needTj":                         false,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, credential)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream %s: %s", resp.Status, body)
	}

	var grab grabResponse
	if err = json.Unmarshal(body, &grab); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if grab.Code != 0 {
		return nil, fmt.Errorf("upstream code %d", grab.Code)
	}
	return parseCoupons(grab.Data.AllCoupons, c.cfg.JumppageType), nil
}

// login performs the source's session warm-up call when one is
// configured. Its response body is irrelevant; only transport-level
// success matters.
func (c *Client) login(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LoginEndpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, credential)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, credential string) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	req.Header.Set("Cookie", cookieValue(credential))
}

// activityUrl picks one of the configured equivalent entry pages to
// spread fingerprint requests across them.
func (c *Client) activityUrl() string {
	urls := c.cfg.ActivityUrls
	if len(urls) == 0 {
		return ""
	}
	if len(urls) == 1 {
		return urls[0]
	}
	return urls[c.pick(len(urls))]
}

func cookieValue(credential string) string {
	if strings.HasPrefix(credential, "token=") {
		return credential
	}
	return "token=" + credential
}
