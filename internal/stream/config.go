package stream

// Config carries the video platform account settings. It is built once at
// process start from the environment and passed by reference into the
// Client, Signer and webhook handler, so nothing in this package reads
// process-wide state.
type Config struct {
	AccountID string
	APIToken  string

	// SigningKey is the RSA private key used for playback tokens, either as
	// a raw PEM block or base64-encoded PEM.
	SigningKey   string
	SigningKeyID string

	WebhookSecret string

	// CustomerDomain is the signed delivery domain, e.g.
	// https://customer-xxxx.cloudflarestream.com. The public delivery domain
	// does not honor tokens, so signed playback requires this to be set.
	CustomerDomain string

	RequireSignedDefault bool
	MaxDurationSeconds   int

	// DirectUploadMaxBytes is the size threshold above which local files go
	// through the resumable protocol instead of a direct upload slot.
	DirectUploadMaxBytes int64
	ChunkSizeBytes       int64
}

const (
	defaultMaxDurationSeconds = 14400
	defaultDirectUploadMaxMB  = 180
	defaultChunkMB            = 50
	metaMaxKeyLen             = 100
	metaMaxValueLen           = 500
)

func (c *Config) maxDuration() int {
	if c.MaxDurationSeconds > 0 {
		return c.MaxDurationSeconds
	}
	return defaultMaxDurationSeconds
}

func (c *Config) directUploadMaxBytes() int64 {
	if c.DirectUploadMaxBytes > 0 {
		return c.DirectUploadMaxBytes
	}
	return defaultDirectUploadMaxMB * 1024 * 1024
}

func (c *Config) chunkSizeBytes() int64 {
	if c.ChunkSizeBytes > 0 {
		return c.ChunkSizeBytes
	}
	return defaultChunkMB * 1024 * 1024
}

// Policy describes how a single asset should be ingested.
type Policy struct {
	RequireSignedPlayback bool
	MaxDurationSeconds    int
	Meta                  map[string]string
}

// encodeMeta applies the platform's meta constraints in one place: string
// keys truncated to 100 chars, values to 500, never an error.
func encodeMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if len(k) > metaMaxKeyLen {
			k = k[:metaMaxKeyLen]
		}
		if len(v) > metaMaxValueLen {
			v = v[:metaMaxValueLen]
		}
		out[k] = v
	}
	return out
}
