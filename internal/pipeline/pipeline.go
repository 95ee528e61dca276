package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"antiochus/internal/diag"
	"antiochus/internal/knowledge"
	"antiochus/pkg/contract"
)

// - 单点并发：仅此层管理并发；Reader/Decoder/Ripper/Store 均为同步实现。
// - 单写者：知识表只在本层按输入顺序合并，并行文档各自抽取成独立批次。
// - 文档隔离：ErrContent 只跳过当前文档；其余错误（格式/模式/IO/取消）中止运行。
// - 持久化是最后一步；此前失败不产生任何输出。

// DefaultPreviewChars verbose 模式下文本预览的最大字符数。
const DefaultPreviewChars = 500

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader  contract.Reader
	Decoder contract.Decoder
	Ripper  contract.Ripper
	Store   contract.Store
}

// Settings 运行期配置。
type Settings struct {
	// Inputs: 输入根（文件/目录/URL/"-"）。HygieneOnly 时忽略。
	Inputs []string
	// Knowledge: 已有知识表标识；为空表示从空表开始。
	Knowledge contract.ArtifactID
	// Output: 持久化目标，必填。
	Output contract.ArtifactID
	// Concurrency: 并行处理的文档数；<=1 顺序处理。
	Concurrency int
	// Hygiene: 合并后执行空键/重复键清理。
	Hygiene bool
	// HygieneOnly: 仅 加载 → 清理 → 持久化，不扫描文档（要求 Knowledge）。
	HygieneOnly bool
	// Verbose: 终端预览文档文本与抽取记录。
	Verbose bool
	// PreviewChars: 文本预览长度；<=0 使用 DefaultPreviewChars。
	PreviewChars int
}

// Summary 运行结果统计。
type Summary struct {
	Documents int // 遍历到的文档数
	Failed    int // 被跳过的文档数
	Records   int // 抽取并合并的记录数（清理前）
	Removed   int // Hygiene 删除的行数
	Rows      int // 持久化的知识行数
}

// Run 执行：Load →（Reader → Decoder → Ripper → Merge）→ Hygiene → Persist。
// 约束：
// - 单文档失败记录日志与终端提示后跳过，计入 Summary.Failed；
// - 并行模式下合并顺序与输入顺序一致，结果与顺序模式相同；
// - 返回错误时不会调用 Persist。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	var sum Summary
	if err := sanity(comp, &set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		name := ""
		if comp.Ripper != nil {
			name = comp.Ripper.Name()
		}
		t.RunStart(set.Concurrency, name)
	}
	ok := false
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.RunFinish(ok, sum.Rows, time.Since(runStart))
		}
	}()

	table, err := load(ctx, comp.Store, set.Knowledge, logger)
	if err != nil {
		return sum, err
	}

	if set.HygieneOnly {
		sum.Removed = hygiene(&table, logger)
		sum.Rows = table.Len()
		if err := persist(ctx, comp.Store, set.Output, table, logger); err != nil {
			return sum, err
		}
		ok = true
		return sum, nil
	}

	sess, err := NewSession(comp.Ripper, table)
	if err != nil {
		fail(logger, "session", "open failed", "", err)
		return sum, fmt.Errorf("session: %w", err)
	}

	rtimer := logger.Start("reader", "iterate")
	if set.Concurrency > 1 {
		err = runParallel(ctx, comp, set, sess, &sum, logger)
	} else {
		err = runSequential(ctx, comp, set, sess, &sum, logger)
	}
	if err != nil {
		fail(logger, "reader", "iterate failed", "", err)
		return sum, fmt.Errorf("reader iterate: %w", err)
	}
	rtimer.Finish("iterate", int64(sum.Documents))
	diag.IncOp("reader", "finish", "success")

	final := sess.Table()
	if set.Hygiene {
		sum.Removed = hygiene(&final, logger)
	}
	sum.Rows = final.Len()
	if err := persist(ctx, comp.Store, set.Output, final, logger); err != nil {
		return sum, err
	}
	ok = true
	return sum, nil
}

func runSequential(ctx context.Context, comp Components, set Settings, sess *Session, sum *Summary, logger *diag.Logger) error {
	return comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Documents++
		start := docStart(fid)
		res := process(ctx, comp, set, fid, rc, logger)
		if res.err == nil {
			res.err = sess.Merge(res.batch)
		}
		return finish(set, sum, res, start, logger)
	})
}

// runParallel: Reader 仍顺序产出文档（读入内存），解码与抽取在 errgroup 中并行，
// 全部完成后由单写者按输入顺序合并。
func runParallel(ctx context.Context, comp Components, set Settings, sess *Session, sum *Summary, logger *diag.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(set.Concurrency)
	var results []*docResult
	var starts []time.Time

	iterErr := comp.Reader.Iterate(gctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if err := gctx.Err(); err != nil {
			return err
		}
		res := &docResult{fileID: fid}
		results = append(results, res)
		starts = append(starts, docStart(fid))
		body, err := io.ReadAll(rc)
		if err != nil {
			res.err = readErr(gctx, fid, err)
			return nil
		}
		g.Go(func() error {
			*res = process(gctx, comp, set, fid, bytes.NewReader(body), logger)
			if res.err != nil && diag.Fatal(diag.Classify(res.err)) {
				return res.err
			}
			return nil
		})
		return nil
	})
	// 工作协程的致命错误优先于其引发的遍历取消
	if err := g.Wait(); err != nil {
		return err
	}
	if iterErr != nil {
		return iterErr
	}
	for i, res := range results {
		sum.Documents++
		if res.err == nil {
			res.err = sess.Merge(res.batch)
		}
		if err := finish(set, sum, *res, starts[i], logger); err != nil {
			return err
		}
	}
	return nil
}

type docResult struct {
	fileID contract.FileID
	text   string
	batch  contract.Table
	err    error
}

func docStart(fid contract.FileID) time.Time {
	if t := diag.GetTerminal(); t != nil {
		t.FileStart(string(fid))
	}
	return time.Now()
}

// process 解码并抽取单篇文档；不修改会话表。
func process(ctx context.Context, comp Components, set Settings, fid contract.FileID, r io.Reader, logger *diag.Logger) docResult {
	res := docResult{fileID: fid}
	dtimer := logger.StartWith("decoder", "decode", string(fid))
	text, err := comp.Decoder.Decode(ctx, fid, r)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		}
		res.err = err
		return res
	}
	dtimer.Finish("decode", int64(len(text)))
	diag.IncOp("decoder", "finish", "success")
	if at := dtimer.Since(); at != nil {
		diag.ObserveDuration("decoder", "decode", time.Since(*at).Milliseconds())
	}
	if set.Verbose {
		res.text = text
	}

	ptimer := logger.StartWithKV("ripper", "rip", string(fid), map[string]string{"ripper": comp.Ripper.Name()})
	res.batch = Rip(comp.Ripper, text)
	ptimer.Finish("rip", int64(res.batch.Len()))
	diag.IncOp("ripper", "finish", "success")
	return res
}

// finish 统计单篇文档结果：可跳过的失败记录后继续，致命错误原样返回。
func finish(set Settings, sum *Summary, res docResult, start time.Time, logger *diag.Logger) error {
	term := diag.GetTerminal()
	if res.err != nil {
		code := diag.Classify(res.err)
		if diag.Fatal(code) {
			fail(logger, "pipeline", "document failed", string(res.fileID), res.err)
			if term != nil {
				term.FileFinish(string(res.fileID), false, 0, time.Since(start))
			}
			return res.err
		}
		sum.Failed++
		logger.Skip("pipeline", string(code), res.err.Error(), string(res.fileID), nil)
		diag.IncOp("pipeline", "document", "skip")
		diag.IncError("pipeline", string(code))
		if term != nil {
			term.Skip(string(res.fileID), res.err)
			term.FileFinish(string(res.fileID), false, 0, time.Since(start))
		}
		return nil
	}
	n := res.batch.Len()
	sum.Records += n
	if set.Verbose && term != nil {
		term.Preview(string(res.fileID), preview(res.text, set.PreviewChars))
		for i, row := range res.batch.Rows {
			term.Preview("record "+strconv.Itoa(i+1), formatRow(res.batch.Columns, row))
		}
	}
	if term != nil {
		term.FileFinish(string(res.fileID), true, n, time.Since(start))
	}
	return nil
}

func readErr(ctx context.Context, fid contract.FileID, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, contract.ErrContent) {
		return err
	}
	return contract.ContentError(fid, err)
}

func load(ctx context.Context, st contract.Store, id contract.ArtifactID, logger *diag.Logger) (contract.Table, error) {
	if id == "" {
		return contract.Table{}, nil
	}
	timer := logger.StartWith("store", "load", string(id))
	t, err := st.Load(ctx, id)
	if err != nil {
		fail(logger, "store", "load failed", string(id), err)
		return contract.Table{}, fmt.Errorf("load knowledge: %w", err)
	}
	timer.Finish("load", int64(t.Len()))
	diag.IncOp("store", "load", "success")
	return t, nil
}

func persist(ctx context.Context, st contract.Store, id contract.ArtifactID, t contract.Table, logger *diag.Logger) error {
	timer := logger.StartWith("store", "persist", string(id))
	if err := st.Persist(ctx, id, t); err != nil {
		fail(logger, "store", "persist failed", string(id), err)
		return fmt.Errorf("persist knowledge: %w", err)
	}
	timer.Finish("persist", int64(t.Len()))
	diag.IncOp("store", "persist", "success")
	return nil
}

func hygiene(t *contract.Table, logger *diag.Logger) int {
	start := time.Now()
	n := knowledge.Hygiene(t)
	logger.InfoFinish("knowledge", "hygiene", start, int64(n))
	diag.IncOp("knowledge", "hygiene", "success")
	return n
}

// fail 记录 error 事件与错误计数。
func fail(logger *diag.Logger, comp, msg, fileID string, err error) {
	code := diag.Classify(err)
	logger.ErrorWithKV(comp, string(code), msg, nil, fileID, map[string]string{"err": err.Error()})
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s *Settings) error {
	if c.Store == nil {
		return fmt.Errorf("%w: pipeline: missing store", contract.ErrInvalidInput)
	}
	if s.Output == "" {
		return fmt.Errorf("%w: pipeline: empty output", contract.ErrInvalidInput)
	}
	if s.Concurrency < 1 {
		s.Concurrency = 1
	}
	if s.PreviewChars <= 0 {
		s.PreviewChars = DefaultPreviewChars
	}
	if s.HygieneOnly {
		if s.Knowledge == "" {
			return fmt.Errorf("%w: pipeline: hygiene-only mode requires existing knowledge", contract.ErrInvalidInput)
		}
		return nil
	}
	if c.Reader == nil || c.Decoder == nil || c.Ripper == nil {
		return fmt.Errorf("%w: pipeline: missing components", contract.ErrInvalidInput)
	}
	if len(s.Inputs) == 0 {
		return fmt.Errorf("%w: pipeline: empty inputs", contract.ErrInvalidInput)
	}
	return nil
}

// preview 截取前 n 个字符（按 rune）。
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func formatRow(cols, row []string) string {
	var b bytes.Buffer
	for i, c := range cols {
		if i >= len(row) {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c)
		b.WriteString(": ")
		b.WriteString(row[i])
	}
	return b.String()
}
