package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jichitai/config"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 同時にダウンロードする最大数
const maxParallel = 2

// Downloader は公表ページから1ファイルを取得します。
type Downloader interface {
	Download(ctx context.Context, target config.FetchTarget) ([]byte, error)
}

// RodDownloader はブラウザで公表ページを開き、リンクをクリックしてダウンロードします。
type RodDownloader struct {
	Headless bool
}

// browserLauncher は起動したブラウザのプロセスを持ちます。*launcher.Launcher が満たします。
type browserLauncher interface {
	Launch() (string, error)
	Kill()
}

var newLauncher = func(headless bool) browserLauncher {
	// Leakless(false) でセキュリティソフト対策
	return launcher.New().
		Headless(headless).
		Leakless(false)
}

func (d *RodDownloader) Download(ctx context.Context, target config.FetchTarget) ([]byte, error) {
	// leakless を使わないので、接続に失敗してもプロセスが残らないよう必ず終了させる
	l := newLauncher(d.Headless)
	defer l.Kill()

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("ブラウザの起動に失敗: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("ブラウザへの接続に失敗: %w", err)
	}
	defer browser.Close()

	var data []byte
	err = rod.Try(func() {
		page := browser.MustPage(target.PageURL)
		page.MustWaitStable()

		wait := browser.MustWaitDownload()
		page.MustElementR("a", target.LinkText).MustClick()
		data = wait()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: リンク[%s]からのダウンロードに失敗: %w", target.PageURL, target.LinkText, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: ダウンロードデータが空です", target.Name)
	}
	return data, nil
}

// Result は1ファイル分の取得結果です。
type Result struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Archived string `json:"archived,omitempty"`
	Bytes    int    `json:"bytes"`
	Error    string `json:"error,omitempty"`
}

// FetchAll は設定された全ファイルを取得し、データディレクトリに保存します。
// 個々の失敗は Result.Error に記録し、全体は止めません。ctx のキャンセルのみエラーとして返します。
func FetchAll(ctx context.Context, d Downloader, cfg config.Config, logger *zap.Logger) ([]Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]Result, len(cfg.Fetch.Targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, target := range cfg.Fetch.Targets {
		i, target := i, target
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := Result{Name: target.Name, Path: cfg.SourcePath(target.Dest)}
			logger.Info("downloading source", zap.String("name", target.Name), zap.String("url", target.PageURL))

			data, err := d.Download(gctx, target)
			if err == nil {
				res.Archived, err = save(cfg, target, res.Path, data)
			}
			if err != nil {
				logger.Warn("download failed", zap.String("name", target.Name), zap.Error(err))
				res.Error = err.Error()
			} else {
				res.Bytes = len(data)
				logger.Info("source saved", zap.String("name", target.Name), zap.String("path", res.Path))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// save は取得したデータを出典の場所に書き込み、保存フォルダに日時付きの控えを残します。
func save(cfg config.Config, target config.FetchTarget, dest string, data []byte) (string, error) {
	if target.Dest == "" {
		return "", fmt.Errorf("%s: 保存先が設定されていません", target.Name)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("保存先フォルダの作成に失敗: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}
	if cfg.Fetch.SaveDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(cfg.Fetch.SaveDir, 0755); err != nil {
		return "", fmt.Errorf("控えフォルダの作成に失敗: %w", err)
	}
	archived := filepath.Join(cfg.Fetch.SaveDir,
		fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), filepath.Base(dest)))
	if err := os.WriteFile(archived, data, 0644); err != nil {
		return "", fmt.Errorf("控えの書き込みに失敗: %w", err)
	}
	return archived, nil
}
