package database

import (
	"errors"
	"testing"
	"time"

	"streamgate/internal/domain"
)

func TestAddProxyPersistsEncryptedPassword(t *testing.T) {
	setupTestDB(t)

	created, err := AddProxy(domain.Proxy{
		Host:     "10.0.0.1",
		Port:     8080,
		Protocol: "HTTP",
		Username: "relay",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("AddProxy: %v", err)
	}
	if created.Protocol != domain.ProtocolHTTP {
		t.Fatalf("protocol = %q, want normalised http", created.Protocol)
	}

	var raw struct{ Password string }
	if err := DB.Table("proxies").Select("password").Where("id = ?", created.ID).Scan(&raw).Error; err != nil {
		t.Fatalf("read raw password column: %v", err)
	}
	if raw.Password == "" || raw.Password == "hunter2" {
		t.Fatalf("password column = %q, want ciphertext", raw.Password)
	}

	loaded, err := LoadProxies()
	if err != nil {
		t.Fatalf("LoadProxies: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Password != "hunter2" {
		t.Fatalf("loaded = %+v, want decrypted password", loaded)
	}
}

func TestAddProxyDuplicateEndpoint(t *testing.T) {
	setupTestDB(t)

	if _, err := AddProxy(domain.Proxy{Host: "10.0.0.1", Port: 8080, Protocol: "http"}); err != nil {
		t.Fatalf("first AddProxy: %v", err)
	}
	_, err := AddProxy(domain.Proxy{Host: "10.0.0.1", Port: 8080, Protocol: "socks5"})
	if !errors.Is(err, ErrProxyExists) {
		t.Fatalf("err = %v, want ErrProxyExists", err)
	}
}

func TestAddProxyRejectsUnknownProtocol(t *testing.T) {
	setupTestDB(t)

	if _, err := AddProxy(domain.Proxy{Host: "10.0.0.1", Port: 8080, Protocol: "gopher"}); err == nil {
		t.Fatal("expected an error for an unsupported protocol")
	}
}

func TestSaveProxyStatesWritesHealthColumns(t *testing.T) {
	setupTestDB(t)

	created, err := AddProxy(domain.Proxy{Host: "10.0.0.1", Port: 8080, Protocol: "http"})
	if err != nil {
		t.Fatalf("AddProxy: %v", err)
	}

	checkedAt := time.Now().UTC().Truncate(time.Second)
	created.Status = domain.StatusDisabled
	created.SuccessCount = 4
	created.FailureCount = 7
	created.ConsecutiveFailures = 3
	created.LatencyMS = 812.5
	created.LastCheckedAt = &checkedAt

	if err := SaveProxyStates([]domain.Proxy{*created}); err != nil {
		t.Fatalf("SaveProxyStates: %v", err)
	}

	loaded, err := LoadProxies()
	if err != nil {
		t.Fatalf("LoadProxies: %v", err)
	}
	got := loaded[0]
	if got.Status != domain.StatusDisabled || got.SuccessCount != 4 || got.FailureCount != 7 ||
		got.ConsecutiveFailures != 3 || got.LatencyMS != 812.5 {
		t.Fatalf("persisted state = %+v, want the drained registry snapshot", got)
	}
	if got.LastCheckedAt == nil {
		t.Fatal("LastCheckedAt was not persisted")
	}
}

func TestSaveProxyStatesEmptyIsNoOp(t *testing.T) {
	setupTestDB(t)

	if err := SaveProxyStates(nil); err != nil {
		t.Fatalf("SaveProxyStates(nil): %v", err)
	}
}

func TestInsertAccessLog(t *testing.T) {
	setupTestDB(t)

	if err := InsertAccessLog(domain.AccessLog{
		ChannelSlug: "sports1",
		SourceURL:   "http://origin/sports1.m3u8",
		ProxyUsed:   "10.0.0.1:8080",
		Outcome:     "SUCCESS",
		ElapsedMS:   412,
		Bytes:       1 << 20,
	}); err != nil {
		t.Fatalf("InsertAccessLog: %v", err)
	}

	var count int64
	if err := DB.Model(&domain.AccessLog{}).Count(&count).Error; err != nil {
		t.Fatalf("count access logs: %v", err)
	}
	if count != 1 {
		t.Fatalf("access log rows = %d, want 1", count)
	}
}
