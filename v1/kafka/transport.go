package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

var ackLevels = map[string]kafka.RequiredAcks{
	"none": kafka.RequireNone,
	"one":  kafka.RequireOne,
	"all":  kafka.RequireAll,
}

// codecs maps compression_codec values; unknown names publish uncompressed.
var codecs = map[string]kafka.Compression{
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// newTransport builds the broker transport with optional TLS and SASL.
func newTransport(cfg Config) (*kafka.Transport, error) {
	t := &kafka.Transport{ClientID: cfg.ClientID}
	if cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.build()
		if err != nil {
			return nil, fmt.Errorf("kafka tls: %w", err)
		}
		t.TLS = tlsConfig
	}
	if cfg.SASL.Enabled {
		mechanism, err := cfg.SASL.build()
		if err != nil {
			return nil, fmt.Errorf("kafka sasl: %w", err)
		}
		t.SASL = mechanism
	}
	return t, nil
}

func (c TLSConfig) build() (*tls.Config, error) {
	out := &tls.Config{InsecureSkipVerify: c.InsecureSkipVerify}
	if c.CACertPath != "" {
		pem, err := os.ReadFile(c.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read ca %s: %w", c.CACertPath, err)
		}
		out.RootCAs = x509.NewCertPool()
		if !out.RootCAs.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", c.CACertPath)
		}
	}
	if c.ClientCertPath == "" || c.ClientKeyPath == "" {
		return out, nil
	}
	pair, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load client key pair: %w", err)
	}
	out.Certificates = append(out.Certificates, pair)
	return out, nil
}

func (c SASLConfig) build() (sasl.Mechanism, error) {
	switch c.Mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: c.Username, Password: c.Password}, nil
	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		algo := scram.SHA256
		if c.Mechanism == "SCRAM-SHA-512" {
			algo = scram.SHA512
		}
		return scram.Mechanism(algo, c.Username, c.Password)
	default:
		return nil, fmt.Errorf("unsupported mechanism %q", c.Mechanism)
	}
}
