package stress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cfgpkg "antiochus/internal/config"
	"antiochus/internal/pipeline"
)

// writeCorpus 生成 n 个文本文档，每个含若干 nmap 命令与噪声段落。
func writeCorpus(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		var b strings.Builder
		for j := 0; j < 50; j++ {
			fmt.Fprintf(&b, "Paragraph %d of chapter %d talks about scanning in general terms.\n", j, i)
			if j%5 == 0 {
				fmt.Fprintf(&b, "Try nmap -sV -p %d 10.%d.%d.1 to fingerprint the service.\n", 1000+j, i%250, j)
			}
		}
		name := filepath.Join(dir, fmt.Sprintf("chapter-%03d.txt", i))
		if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write corpus: %v", err)
		}
	}
}

// runPipeline 执行完整流水线并返回写出的知识表字节。
func runPipeline(t *testing.T, corpus, out string, conc int) ([]byte, error) {
	cfg := cfgpkg.Defaults()
	cfg.Inputs = []string{corpus}
	cfg.Output = out
	cfg.Concurrency = conc
	cfg.Logging.Level = "error"
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.Run(context.Background(), comp, set, nil); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// TestStress 在不同并发度下运行流水线并记录延迟统计；各并发度输出必须一致。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	corpus := t.TempDir()
	writeCorpus(t, corpus, 200)
	var baseline []byte
	for _, conc := range []int{1, 8, 16, 32, 64} {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 5
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				out := filepath.Join(t.TempDir(), "kb.csv")
				start := time.Now()
				got, err := runPipeline(t, corpus, out, conc)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if baseline == nil {
					baseline = got
				} else if !bytes.Equal(baseline, got) {
					t.Fatalf("并发%d 输出与顺序模式不一致", conc)
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v 输出%dB", conc, float64(successes)/float64(runs), avg, latencies[idx], len(baseline))
		})
	}
}

// copyFile 复制文件内容。
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// TestStressKnowledgeGrowth 反复以上次输出为知识表扩展，行数保持稳定（清理去重）。
func TestStressKnowledgeGrowth(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	corpus := t.TempDir()
	writeCorpus(t, corpus, 20)
	dir := t.TempDir()
	prev := filepath.Join(dir, "kb-0.csv")
	first, err := runPipeline(t, corpus, prev, 4)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 1; i <= 3; i++ {
		kb := filepath.Join(dir, fmt.Sprintf("kb-%d.csv", i))
		if err := copyFile(prev, kb); err != nil {
			t.Fatalf("copy: %v", err)
		}
		cfg := cfgpkg.Defaults()
		cfg.Inputs = []string{corpus}
		cfg.Knowledge = kb
		cfg.Output = kb
		cfg.Concurrency = 4
		cfg.Logging.Level = "error"
		comp, set, err := cfgpkg.Assemble(cfg)
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if _, err := pipeline.Run(context.Background(), comp, set, nil); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		got, _ := os.ReadFile(kb)
		if !bytes.Equal(first, got) {
			t.Fatalf("第 %d 次扩展后知识表变化", i)
		}
		prev = kb
	}
}
