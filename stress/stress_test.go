package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cfgpkg "achparse/internal/config"
	"achparse/internal/fixture"
	"achparse/internal/pipeline"
)

const (
	stressFiles   = 16
	stressBatches = 20
	stressEntries = 50
)

// baseConfig 构造可运行的最小配置：目录输入、JSON 产物、关闭持久化。
func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Logging.Level = "error"
	cfg.Logging.Dir = ""
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":false,"flat":true}`, outDir))
	cfg.Options.Renderer = json.RawMessage(`{"indent":0}`)
	return cfg
}

// runPipeline 执行完整流水线。
func runPipeline(cfg cfgpkg.Config) (int, error) {
	comp, set, err := cfgpkg.Assemble(context.Background(), cfg)
	if err != nil {
		return 0, err
	}
	snap, err := pipeline.Run(context.Background(), comp, set, nil)
	return snap.Entries, err
}

// writeInputs 在 dir 下生成 n 个结构良好的大文件。
func writeInputs(dir string, n int) error {
	body := strings.Join(fixture.File(stressBatches, stressEntries, 1), "\r\n") + "\r\n"
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("stress-%02d.ach", i))
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过压测")
	}
	dataDir := t.TempDir()
	if err := writeInputs(dataDir, stressFiles); err != nil {
		t.Fatalf("生成输入失败: %v", err)
	}
	wantEntries := stressFiles * stressBatches * stressEntries
	levels := []int{1, 4, 8, 16}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 5
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				cfg := baseConfig(dataDir, t.TempDir())
				cfg.Concurrency = conc
				start := time.Now()
				entries, err := runPipeline(cfg)
				dur := time.Since(start)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				if entries != wantEntries {
					t.Errorf("run %d: 明细数应为 %d，实际 %d", i, wantEntries, entries)
					continue
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
			p95 := latencies[idx]
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}
