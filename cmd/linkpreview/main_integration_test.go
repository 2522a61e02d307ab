package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

func TestCLI_Fetch_StdoutOnlyPreviewJSON(t *testing.T) {
	// 锁定对外契约：stdout 只输出一个 PreviewResult JSON，日志走 stderr。
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"og:title":"Penn State","og:description":"desc"}}`))
	}))
	defer api.Close()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/linkpreview", "fetch",
		"--endpoint", api.URL,
		"--log-level", "debug",
		"https://www.psu.edu/news",
	)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var res domain.PreviewResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("stdout 不是合法的 PreviewResult JSON：%v\nstdout=%q", err, stdout.String())
	}
	want := domain.PreviewResult{
		Title:        "Penn State",
		CanonicalURL: "https://www.psu.edu/news",
		Description:  "desc",
		ThemeColor:   domain.DefaultPrimaryToken,
	}
	if res != want {
		t.Fatalf("结果不符合预期：\n got=%+v\nwant=%+v", res, want)
	}
	if stderr.Len() == 0 {
		t.Fatalf("debug 级别下 stderr 应有日志输出")
	}
}
