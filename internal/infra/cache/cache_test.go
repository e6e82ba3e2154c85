package cache

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"
)

func TestKey_PureFunctionOfParams(t *testing.T) {
	a := url.Values{}
	a.Set("company", "Westfield Capital")
	a.Set("type", "485")

	// 同样的参数，不同的插入顺序，必须得到同一个 key。
	b := url.Values{}
	b.Set("type", "485")
	b.Set("company", "Westfield Capital")

	ka, err := Key(a, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	kb, _ := Key(b, "")
	if ka != kb {
		t.Fatalf("key 应与参数顺序无关：%q != %q", ka, kb)
	}
	if !strings.HasSuffix(ka, ".html") || len(ka) != 64+len(".html") {
		t.Fatalf("key 格式不符合预期：%q", ka)
	}

	kp, _ := Key(a, "_485")
	if kp == ka || !strings.HasSuffix(kp, "_485.html") {
		t.Fatalf("suffix 应区分搜索类型：%q", kp)
	}
}

func TestKey_RejectsUnsafeSuffix(t *testing.T) {
	if _, err := Key(url.Values{}, "../x"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestStore_RoundTripByteIdentical(t *testing.T) {
	s := New(t.TempDir(), false)
	params := url.Values{"ticker": {"LOCSX"}}
	body := []byte("<html><body>é \x00 raw</body></html>")

	if _, ok, err := s.Read(params, ""); err != nil || ok {
		t.Fatalf("空缓存不应命中：ok=%v err=%v", ok, err)
	}

	created, err := s.Write(params, "", body)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !created {
		t.Fatalf("期望首次写入 created=true")
	}

	got, ok, err := s.Read(params, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(got) != string(body) {
		t.Fatalf("内容不一致：%q", string(got))
	}

	created, err = s.Write(params, "", []byte("other"))
	if err != nil || created {
		t.Fatalf("第二次写入应为 no-op：created=%v err=%v", created, err)
	}
	got, _, _ = s.Read(params, "")
	if string(got) != string(body) {
		t.Fatalf("缓存不应被覆盖：%q", string(got))
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	s := New(t.TempDir(), true)
	params := url.Values{"company": {"Thaler"}}

	_, err := s.Write(params, "", []byte("<html/>"))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}

	path, err := s.Path(params, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestStore_EmptyDir(t *testing.T) {
	s := New("  ", false)
	if _, err := s.Write(url.Values{}, "", nil); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, _, err := s.Read(url.Values{}, ""); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
