package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/natefinch/lumberjack.v2"
)

// OutputOptions 日志输出配置
type OutputOptions struct {
	File       string // 为空时只输出到控制台
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Console    bool
	Compress   bool
}

// Output 日志输出，关闭时释放日志文件
type Output struct {
	io.Writer
	file *lumberjack.Logger
}

// Close 关闭日志文件
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// Rotate 立即轮转日志文件
func (o *Output) Rotate() error {
	if o.file == nil {
		return nil
	}
	return o.file.Rotate()
}

// NewOutput 根据配置创建日志输出
func NewOutput(opts OutputOptions) (*Output, error) {
	if opts.File == "" {
		return &Output{Writer: os.Stdout}, nil
	}

	if dir := filepath.Dir(opts.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
		Compress:   opts.Compress,
	}

	var w io.Writer = file
	if opts.Console {
		w = io.MultiWriter(os.Stdout, file)
	}

	return &Output{Writer: w, file: file}, nil
}

// NextMidnight 返回 t 之后的下一个本地零点
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// RotateDaily 每到本地零点轮转一次日志文件，直到 ctx 结束
func (o *Output) RotateDaily(ctx context.Context, clk clock.Clock) {
	if o.file == nil {
		return
	}
	if clk == nil {
		clk = clock.New()
	}

	for {
		now := clk.Now()
		timer := clk.Timer(NextMidnight(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := o.file.Rotate(); err != nil {
				// 轮转失败时继续写入当前文件
				fmt.Fprintf(os.Stderr, "failed to rotate log file: %v\n", err)
			}
		}
	}
}
