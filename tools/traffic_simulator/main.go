package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/trustsafety/internal/config"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/token"
)

var (
	server        string
	users         int
	totalReq      int
	conc          int
	duration      time.Duration
	rate          float64
	reportRate    float64
	toxicRate     float64
	stats         bool
	flush         bool
	redisAddr     string
	debug         bool
	label         string
	secret        string
	surgeInterval time.Duration
	surgeDuration time.Duration
	surgeFactor   float64
	jitter        float64
)

var logger *zap.Logger

var httpClient *http.Client

var (
	userAgents = []string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 12; Pixel 6 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.196 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 15_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.2 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_3_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
	}
	userIPs = []string{
		"192.0.2.1",
		"198.51.100.1",
		"203.0.113.1",
	}
	cleanTexts = []string{
		"Finished my first 10k today!",
		"Anyone up for a morning ride on Saturday?",
		"New personal best on deadlifts",
		"Rest day, stretching and a long walk",
	}
	toxicTexts = []string{
		"you are a worthless idiot",
		"buy cheap followers now at spam.example",
		"nobody wants you here, go away loser",
	}
	mutationKinds = []string{"post", "comment", "kudos"}
)

const statsInterval = 5 * time.Second

var (
	countSent        uint64
	countAllowed     uint64
	countDenied      uint64
	countReports     uint64
	countRateLimited uint64
	countSuspended   uint64
	countErrors      uint64
)

type screenReq struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type screenResp struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type reportReq struct {
	Content models.ContentRef   `json:"content"`
	Reason  models.ReportReason `json:"reason"`
	Details string              `json:"details,omitempty"`
}

func main() {
	flag.StringVar(&server, "server", "http://localhost:8787", "trust and safety service base URL")
	flag.IntVar(&users, "users", 100, "number of unique users")
	flag.IntVar(&totalReq, "requests", 1000, "total requests to send")
	flag.IntVar(&conc, "concurrency", 20, "concurrent requests")
	flag.DurationVar(&duration, "duration", 0, "how long to run traffic (0 to disable)")
	flag.Float64Var(&rate, "rate", 0, "requests per second (0 for unlimited)")
	flag.Float64Var(&reportRate, "report-rate", 0.1, "probability a request is a report instead of a screen")
	flag.Float64Var(&toxicRate, "toxic-rate", 0.05, "probability screened text is abusive")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "flush rate limit counters in redis before sending traffic")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.StringVar(&label, "label", "", "label to identify this run")
	flag.StringVar(&secret, "secret", "", "token secret (defaults to TOKEN_SECRET)")
	flag.DurationVar(&surgeInterval, "surge-interval", 0, "interval between traffic surges (0 to disable)")
	flag.DurationVar(&surgeDuration, "surge-duration", 0, "duration of each surge window")
	flag.Float64Var(&surgeFactor, "surge-multiplier", 2.0, "requests multiplier during surge period")
	flag.Float64Var(&jitter, "jitter", 0.0, "random jitter factor for request spacing")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	var err error
	logger, err = observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}

	cfg := config.Load()
	if secret == "" {
		secret = cfg.TokenSecret
	}
	if secret == "" {
		logger.Fatal("token secret required (-secret or TOKEN_SECRET)")
	}

	if flush {
		addr := redisAddr
		if addr == "" {
			addr = cfg.RedisAddr
		}
		flushRateLimits(addr)
	}

	tokens := make([]string, users)
	for i := range tokens {
		tokens[i], err = token.Generate(fmt.Sprintf("sim-user-%d", i), token.RoleUser, []byte(secret))
		if err != nil {
			logger.Fatal("mint token", zap.Error(err))
		}
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rmu sync.Mutex
	randFloat := func() float64 {
		rmu.Lock()
		defer rmu.Unlock()
		return r.Float64()
	}
	randIntn := func(n int) int {
		rmu.Lock()
		defer rmu.Unlock()
		return r.Intn(n)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, conc)
	done := make(chan struct{})

	var baseInterval time.Duration
	if rate > 0 {
		baseInterval = time.Duration(float64(time.Second) / rate)
	} else if duration > 0 && totalReq > 0 {
		baseInterval = duration / time.Duration(totalReq)
	}

	start := time.Now()
	next := start

	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats()
				case <-done:
					printStats()
					return
				}
			}
		}()
	}
	for i := 0; ; i++ {
		if totalReq > 0 && i >= totalReq {
			break
		}
		if duration > 0 && time.Since(start) >= duration {
			break
		}
		if baseInterval > 0 {
			effective := baseInterval
			if surgeInterval > 0 && surgeDuration > 0 && surgeFactor > 0 {
				if time.Since(start)%surgeInterval < surgeDuration {
					effective = time.Duration(float64(effective) / surgeFactor)
				}
			}
			if jitter > 0 {
				jf := max(1+(randFloat()*2-1)*jitter, 0.1)
				effective = time.Duration(float64(effective) * jf)
			}
			now := time.Now()
			if now.Before(next) {
				time.Sleep(next.Sub(now))
			}
			next = next.Add(effective)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			atomic.AddUint64(&countSent, 1)

			actor := randIntn(users)
			h := http.Header{}
			h.Set("Authorization", "Bearer "+tokens[actor])
			h.Set("Content-Type", "application/json")
			h.Set("User-Agent", userAgents[randIntn(len(userAgents))])
			h.Set("X-Forwarded-For", userIPs[randIntn(len(userIPs))])

			if randFloat() < reportRate {
				target := randIntn(users)
				sendReport(h, reportReq{
					Content: models.ContentRef{Type: models.ContentTypeUser, ID: fmt.Sprintf("sim-user-%d", target)},
					Reason:  models.ReportReasons[randIntn(len(models.ReportReasons))],
					Details: "simulated report",
				})
				return
			}

			kind := mutationKinds[randIntn(len(mutationKinds))]
			if kind == "kudos" {
				sendKudos(h)
				return
			}
			text := cleanTexts[randIntn(len(cleanTexts))]
			if randFloat() < toxicRate {
				text = toxicTexts[randIntn(len(toxicTexts))]
			}
			sendScreen(h, screenReq{Kind: kind, Text: text})
		}()
	}
	wg.Wait()
	close(done)
	if !stats {
		printStats()
	}
}

func flushRateLimits(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := db.InitRedis(ctx, addr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer store.Close()

	keys, err := store.Client.Keys(ctx, "ratelimit:*").Result()
	if err != nil {
		logger.Error("list rate limit keys", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := store.Client.Del(ctx, keys...).Err(); err != nil {
			logger.Error("delete rate limit keys", zap.Error(err))
			return
		}
	}
	logger.Info("rate limit counters flushed", zap.String("addr", addr), zap.Int("keys_deleted", len(keys)))
}

func post(path string, h http.Header, body any) (int, []byte, error) {
	blob, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+path, bytes.NewReader(blob))
	if err != nil {
		return 0, nil, err
	}
	req.Header = h
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, err
}

// countStatus tallies the refusals every endpoint can return.
func countStatus(status int, body []byte) bool {
	switch status {
	case http.StatusTooManyRequests:
		atomic.AddUint64(&countRateLimited, 1)
	case http.StatusForbidden:
		atomic.AddUint64(&countSuspended, 1)
	default:
		return false
	}
	logger.Debug("refused", zap.Int("status", status), zap.ByteString("body", bytes.TrimSpace(body)))
	return true
}

func sendScreen(h http.Header, body screenReq) {
	status, out, err := post("/v1/content/screen", h, body)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("screen request error", zap.Error(err))
		return
	}
	if countStatus(status, out) {
		return
	}
	if status != http.StatusOK {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", status), zap.ByteString("body", bytes.TrimSpace(out)))
		return
	}
	var res screenResp
	if err := json.Unmarshal(out, &res); err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("decode error", zap.Error(err))
		return
	}
	if res.Allowed {
		atomic.AddUint64(&countAllowed, 1)
	} else {
		atomic.AddUint64(&countDenied, 1)
	}
	logger.Debug("screened", zap.String("kind", body.Kind), zap.Bool("allowed", res.Allowed), zap.String("reason", res.Reason))
}

// sendKudos goes through the mutation gate; kudos carry no content to screen.
func sendKudos(h http.Header) {
	status, out, err := post("/v1/actions/kudos", h, struct{}{})
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("kudos request error", zap.Error(err))
		return
	}
	if countStatus(status, out) {
		return
	}
	if status != http.StatusOK {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", status), zap.ByteString("body", bytes.TrimSpace(out)))
		return
	}
	atomic.AddUint64(&countAllowed, 1)
}

func sendReport(h http.Header, body reportReq) {
	status, out, err := post("/v1/reports", h, body)
	if err != nil {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("report request error", zap.Error(err))
		return
	}
	if countStatus(status, out) {
		return
	}
	if status != http.StatusCreated {
		atomic.AddUint64(&countErrors, 1)
		logger.Error("unexpected status", zap.Int("status", status), zap.ByteString("body", bytes.TrimSpace(out)))
		return
	}
	atomic.AddUint64(&countReports, 1)
}

func printStats() {
	allowed := atomic.LoadUint64(&countAllowed)
	denied := atomic.LoadUint64(&countDenied)
	var denyRate float64
	if allowed+denied > 0 {
		denyRate = float64(denied) / float64(allowed+denied)
	}
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sent", atomic.LoadUint64(&countSent)),
		zap.Uint64("allowed", allowed),
		zap.Uint64("denied", denied),
		zap.Uint64("reports", atomic.LoadUint64(&countReports)),
		zap.Uint64("rate_limited", atomic.LoadUint64(&countRateLimited)),
		zap.Uint64("suspended", atomic.LoadUint64(&countSuspended)),
		zap.Uint64("errors", atomic.LoadUint64(&countErrors)),
		zap.Float64("deny_rate", denyRate))
}
