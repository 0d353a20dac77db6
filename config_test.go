package dsync

import (
	"log/slog"
	"strings"
	"testing"
)

func TestChannelAndEntryNames(t *testing.T) {
	if got := ChannelName("jobs"); got != "dsync_semaphore__channel__{jobs}" {
		t.Fatalf("unexpected channel name %s", got)
	}
	id := NewUUID()
	if got := EntryName(id, "jobs"); got != id.String()+":jobs" {
		t.Fatalf("unexpected entry name %s", got)
	}
	other := NewUUID()
	if EntryName(id, "jobs") == EntryName(other, "jobs") {
		t.Fatalf("entries of different processes must not collide")
	}
}

func TestParseUUID(t *testing.T) {
	id := NewUUID()
	parsed, err := ParseUUID(id.String())
	if err != nil || parsed != id {
		t.Fatalf("round trip failed: %v", err)
	}
	if _, err := ParseUUID("not-a-uuid"); err == nil {
		t.Fatalf("expected parse error")
	}
	if !NilUUID.IsNil() || id.IsNil() {
		t.Fatalf("unexpected IsNil result")
	}
}

func TestDeploymentType_Parse(t *testing.T) {
	for _, dt := range []DeploymentType{Standalone, Clustered, ClusteredCassandra} {
		got, err := ParseDeploymentType(dt.String())
		if err != nil || got != dt {
			t.Fatalf("%s: parse failed: %v", dt, err)
		}
	}
	if _, err := ParseDeploymentType("mesh"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestOptions_Validate(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"standalone", Options{Type: Standalone}, ""},
		{"clustered without redis", Options{Type: Clustered}, "redis_config"},
		{"clustered", Options{Type: Clustered, RedisConfig: &RedisConfig{Address: "localhost:6379"}}, ""},
		{"cassandra without hosts", Options{Type: ClusteredCassandra, RedisConfig: &RedisConfig{}, CassandraConfig: &CassandraConfig{}}, "cluster_hosts"},
		{"cassandra", Options{Type: ClusteredCassandra, RedisConfig: &RedisConfig{}, CassandraConfig: &CassandraConfig{ClusterHosts: []string{"localhost"}}}, ""},
		{"unknown", Options{Type: DeploymentType(9)}, "unknown"},
	}
	for _, c := range cases {
		err := c.opts.Validate()
		if c.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", c.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), c.wantErr) {
			t.Fatalf("%s: expected error containing %q, got %v", c.name, c.wantErr, err)
		}
	}
}

func TestConfigureLogging_Level(t *testing.T) {
	t.Setenv("DSYNC_LOG_LEVEL", "WARN")
	ConfigureLogging()
	if LogLevel() != slog.LevelWarn {
		t.Fatalf("expected warn level, got %v", LogLevel())
	}
	SetLogLevel(slog.LevelDebug)
	if LogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", LogLevel())
	}
	t.Setenv("DSYNC_LOG_LEVEL", "")
	ConfigureLogging()
	if LogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level by default, got %v", LogLevel())
	}
}
