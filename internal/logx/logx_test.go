package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Encoding: "json", Output: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("期望 1 行日志，实际为 %d：%q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("json 日志解析失败：%v", err)
	}
	if m["msg"] != "shown" || m["level"] != "warn" {
		t.Fatalf("日志字段不符合预期：%v", m)
	}
}

func TestNew_DefaultsToConsoleInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Output: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	log.Debug("hidden")
	log.Info("hello")
	_ = log.Sync()
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("输出不符合预期：%q", buf.String())
	}
}

func TestNew_RejectsUnknown(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("未知级别期望错误")
	}
	if _, err := New(Config{Encoding: "xml"}); err == nil {
		t.Fatalf("未知编码期望错误")
	}
}
