package storage

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

const defaultValkeyPort = "6379"

type valkeyConnInfo struct {
	addr     string
	username string
	password string
	selectDB int
	useTLS   bool
}

// NewValkeyClient 는 STORE_URL 설정으로 Valkey 클라이언트를 생성한다.
func NewValkeyClient(cfg config.StoreConfig) (valkey.Client, error) {
	conn, err := parseValkeyURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse store addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	return client, nil
}

func parseValkeyURL(raw string) (valkeyConnInfo, error) {
	if strings.TrimSpace(raw) == "" {
		return valkeyConnInfo{}, errors.New("store url is empty")
	}
	if !strings.Contains(raw, "://") {
		return parseValkeyAddr(raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return valkeyConnInfo{}, fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "redis", "rediss", "valkey", "valkeys":
	default:
		return valkeyConnInfo{}, fmt.Errorf("unsupported store scheme: %s", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return valkeyConnInfo{}, errors.New("store host missing")
	}
	port := parsed.Port()
	if port == "" {
		port = defaultValkeyPort
	}

	selectDB := 0
	if path := strings.TrimPrefix(parsed.Path, "/"); strings.TrimSpace(path) != "" {
		db, err := strconv.Atoi(path)
		if err != nil || db < 0 {
			return valkeyConnInfo{}, fmt.Errorf("invalid store db: %q", path)
		}
		selectDB = db
	}

	info := valkeyConnInfo{
		addr:     net.JoinHostPort(host, port),
		selectDB: selectDB,
		useTLS:   isTLSScheme(parsed.Scheme),
	}
	if parsed.User != nil {
		info.username = parsed.User.Username()
		info.password, _ = parsed.User.Password()
	}
	return info, nil
}

func isTLSScheme(scheme string) bool {
	return strings.EqualFold(scheme, "rediss") || strings.EqualFold(scheme, "valkeys")
}

func parseValkeyAddr(addr string) (valkeyConnInfo, error) {
	trimmed := strings.TrimSpace(addr)
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		var addrErr *net.AddrError
		if !errors.As(err, &addrErr) || addrErr.Err != "missing port in address" {
			return valkeyConnInfo{}, fmt.Errorf("invalid store address: %w", err)
		}
		host = strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
		port = defaultValkeyPort
	}
	if strings.TrimSpace(host) == "" {
		return valkeyConnInfo{}, errors.New("store host missing")
	}
	return valkeyConnInfo{addr: net.JoinHostPort(host, port)}, nil
}
