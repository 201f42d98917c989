package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jichitai/automation"
	"jichitai/config"
	"jichitai/database"
	"jichitai/datamanager"
	"jichitai/toolserver"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jichitai",
	Short: "全国の市区町村の公開統計を団体コードで結合して提供します",
	Long: `総務省・デジタル庁が公表する市区町村単位の統計ファイル（団体コード、住民基本台帳人口、
年齢階級別人口、財政指標、マイナンバーカード交付状況、自治体DX）を読み込み、
団体コードをキーに結合した結果を HTTP API・stdio ツールサーバー・CSV で提供します。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.SetPath(configPath)
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		// stdout はツールサーバーの応答に使うため、ログは stderr に出す
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API サーバーを起動します",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "stdio で JSON-RPC ツールサーバーを起動します",
	RunE:  runMCP,
}

var queryCmd = &cobra.Command{
	Use:   "query [tool] [json-arguments]",
	Short: "ツールを1回呼び出して結果を表示します",
	Long: `ツールサーバーと同じ操作をコマンドラインから呼び出します。

例:
  jichitai query get_basic_info '{"jichitai_code":"033227"}'
  jichitai query search '{"prefecture":["岩手県"],"jichitai_type":["町"],"limit":5}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuery,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "全市区町村の統合データを CSV に書き出します",
	RunE:  runExport,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "公表ページから出典ファイルをダウンロードします",
	RunE:  runFetch,
}

var (
	serveAddr    string
	exportOutput string
	exportSQLite bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./jichitai.yaml", "設定ファイルのパス")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出力する")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレス（既定: 設定の server.addr）")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "出力先 CSV（既定: 設定の export.csv_path）")
	exportCmd.Flags().BoolVar(&exportSQLite, "sqlite", false, "SQLite のスナップショットにも書き込む")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openManager() (*datamanager.Manager, error) {
	m, err := datamanager.New(config.GetConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open sources: %w", err)
	}
	logger.Info("sources opened", zap.Any("available", m.Available()))
	return m, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	store := newSourceStore(m, logger)
	defer store.Close()

	cfg := config.GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, store, &automation.RodDownloader{Headless: cfg.Fetch.Headless}, logger)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server start error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signalContext()
	defer stop()

	srv := toolserver.New(m, logger,
		toolserver.WithExportPath(config.GetConfig().Export.CSVPath),
		toolserver.WithVersion(version))
	logger.Info("tool server listening on stdio")
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()

	var raw json.RawMessage
	if len(args) == 2 {
		raw = json.RawMessage(args[1])
		if !json.Valid(raw) {
			return fmt.Errorf("引数が JSON ではありません: %s", args[1])
		}
	}
	srv := toolserver.New(m, logger, toolserver.WithExportPath(config.GetConfig().Export.CSVPath))
	text, err := srv.Call(args[0], raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer m.Close()

	cfg := config.GetConfig()
	path := cfg.Export.CSVPath
	if exportOutput != "" {
		path = exportOutput
	}
	res, err := m.ExportCSV(path)
	if err != nil {
		return err
	}
	logger.Info("csv exported", zap.String("path", res.FilePath), zap.Int("count", res.Count))

	if exportSQLite {
		rows, err := m.ExportRows()
		if err != nil {
			return err
		}
		db, err := database.Open(cfg.Export.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err := database.WriteSnapshot(db, rows, logger)
		if err != nil {
			return err
		}
		logger.Info("snapshot written", zap.String("db", cfg.Export.SQLitePath), zap.String("run_id", runID))
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if len(cfg.Fetch.Targets) == 0 {
		return errors.New("取得対象が設定されていません（fetch.targets）")
	}
	ctx, stop := signalContext()
	defer stop()

	results, err := automation.FetchAll(ctx, &automation.RodDownloader{Headless: cfg.Fetch.Headless}, cfg, logger)
	if err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "NG  %s: %s\n", res.Name, res.Error)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK  %s -> %s (%d bytes)\n", res.Name, res.Path, res.Bytes)
	}
	if failed > 0 {
		return fmt.Errorf("%d 件の取得に失敗しました", failed)
	}
	return nil
}
