package config

import "time"

// Default selectors match the classic IMDb search-result and title-page layout.
const (
	DefaultDetailLinkSelector = ".lister-item-header a"
	DefaultNextPageSelector   = ".lister-page-next"
	DefaultTitleSelector      = ".title_wrapper h1"
	DefaultYearSelector       = "#titleYear a"
	DefaultDirectorSelector   = "[itemprop=creator] [itemprop=name]"
	DefaultActorsSelector     = "[itemprop=actors] [itemprop=name]"

	DefaultUserAgent  = "film-indexer/1.0 (+https://github.com/Sriram-PR/film-indexer)"
	DefaultListenAddr = "127.0.0.1:8000"
)

// SelectorConfig holds the CSS selectors used on listing and detail pages
type SelectorConfig struct {
	DetailLink string `yaml:"detail_link,omitempty"` // Anchors to detail pages on a listing page
	NextPage   string `yaml:"next_page,omitempty"`   // Element carrying (or containing) the next-page href
	Title      string `yaml:"title,omitempty"`
	Year       string `yaml:"year,omitempty"`
	Director   string `yaml:"director,omitempty"`
	Actors     string `yaml:"actors,omitempty"`
}

// ServerConfig holds settings for the query HTTP server
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr,omitempty"`
	CacheSize       int           `yaml:"cache_size,omitempty"` // Number of per-term responses kept in the LRU
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// AppConfig holds the application configuration for one crawl-and-serve run
type AppConfig struct {
	StartURL                string           `yaml:"start_url"`
	Selectors               SelectorConfig   `yaml:"selectors,omitempty"`
	NumWorkers              int              `yaml:"num_workers"`
	QueueSize               int              `yaml:"queue_size,omitempty"` // Capacity of the work channel between walker and workers
	MaxRequests             int              `yaml:"max_requests"`         // Global bound on in-flight HTTP requests
	MaxPages                int              `yaml:"max_pages,omitempty"`  // Listing pages to walk (0 = unlimited)
	UserAgent               string           `yaml:"user_agent,omitempty"`
	MaxRetries              int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	PerPageTimeout          time.Duration    `yaml:"per_page_timeout,omitempty"` // Timeout for a single detail work unit (0 = no timeout)
	GlobalCrawlTimeout      time.Duration    `yaml:"global_crawl_timeout,omitempty"`
	MaxPageSizeBytes        int64            `yaml:"max_page_size_bytes,omitempty"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	StateDir                string           `yaml:"state_dir,omitempty"`          // Empty keeps the visited store in memory
	DedupeDetailURLs        *bool            `yaml:"dedupe_detail_urls,omitempty"` // nil = default (true)
	Server                  ServerConfig     `yaml:"server,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil = transport default
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// GetEffectiveDedupeDetailURLs reports whether repeated detail links should be dispatched only once
func GetEffectiveDedupeDetailURLs(appCfg AppConfig) bool {
	if appCfg.DedupeDetailURLs != nil {
		return *appCfg.DedupeDetailURLs
	}
	return true
}
