package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Required: StartURL (absolute http/https)
	c.StartURL = strings.TrimSpace(c.StartURL)
	if c.StartURL == "" {
		return nil, fmt.Errorf("%w: start_url is required", utils.ErrConfigValidation)
	}
	u, parseErr := url.Parse(c.StartURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: start_url '%s' is not a valid URL: %v", utils.ErrConfigValidation, c.StartURL, parseErr)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: start_url '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, c.StartURL)
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 8")
		c.NumWorkers = 8
	}

	// QueueSize
	if c.QueueSize <= 0 {
		c.QueueSize = 2 * c.NumWorkers
	}

	// MaxRequests (workers plus the walker's listing fetch)
	if c.MaxRequests <= 0 {
		c.MaxRequests = c.NumWorkers + 1
		warnings = append(warnings, fmt.Sprintf("max_requests should be > 0, defaulting to num_workers+1 (%d)", c.MaxRequests))
	} else if c.MaxRequests < c.NumWorkers+1 {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests (%d) is below num_workers+1 (%d): workers will queue for request slots and the listing walk will wait for them",
			c.MaxRequests, c.NumWorkers+1))
	}

	// MaxPages
	if c.MaxPages < 0 {
		warnings = append(warnings, "max_pages cannot be negative, setting to 0 (unlimited)")
		c.MaxPages = 0
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	if c.PerPageTimeout < 0 {
		warnings = append(warnings, "per_page_timeout cannot be negative, disabling timeout")
		c.PerPageTimeout = 0
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, defaulting to 10 MiB")
		c.MaxPageSizeBytes = 0
	}
	if c.MaxPageSizeBytes == 0 {
		c.MaxPageSizeBytes = 10 << 20
	}

	c.validateSelectors()
	c.validateHTTPClientSettings()
	warnings = append(warnings, c.validateServer()...)

	return warnings, nil
}

// validateSelectors fills empty selectors with the defaults.
func (c *AppConfig) validateSelectors() {
	s := &c.Selectors
	if strings.TrimSpace(s.DetailLink) == "" {
		s.DetailLink = DefaultDetailLinkSelector
	}
	if strings.TrimSpace(s.NextPage) == "" {
		s.NextPage = DefaultNextPageSelector
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultTitleSelector
	}
	if strings.TrimSpace(s.Year) == "" {
		s.Year = DefaultYearSelector
	}
	if strings.TrimSpace(s.Director) == "" {
		s.Director = DefaultDirectorSelector
	}
	if strings.TrimSpace(s.Actors) == "" {
		s.Actors = DefaultActorsSelector
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		// Everything goes to one host, so allow one idle conn per concurrent request
		h.MaxIdleConnsPerHost = c.MaxRequests
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// validateServer applies defaults to the query server settings.
func (c *AppConfig) validateServer() (warnings []string) {
	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.CacheSize < 0 {
		warnings = append(warnings, "server.cache_size cannot be negative, defaulting to 1024")
		s.CacheSize = 0
	}
	if s.CacheSize == 0 {
		s.CacheSize = 1024
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = 10 * time.Second
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
	return warnings
}
