// Package datamanager は各出典のパーサーを束ね、団体コードをキーにした結合・条件検索・
// 年齢構成の算出・エクスポートを行います。
package datamanager

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"jichitai/config"
	"jichitai/model"
	"jichitai/parsers"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// 出典表記
const (
	PopulationSource        = "令和6年1月1日住民基本台帳"
	AgeGroupSource          = "令和6年1月1日住民基本台帳（年齢階級別人口）"
	FinanceSummarySource    = "令和5年度全市町村の主要財政指標"
	FinanceSettlementSource = "令和5年度市町村別決算状況調"
	MyNumberSource          = "マイナンバーカード交付状況（令和7年8月末時点）"
	DXSource                = "自治体DX推進状況ダッシュボード（2024年7月12日更新）"
)

var (
	// ErrInvalidArgument は問い合わせ条件が不正な場合に返されます。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSourceUnavailable は処理に必須の出典ファイルがない場合に返されます。
	ErrSourceUnavailable = errors.New("source unavailable")
)

// FinanceCitation は財政データの出典表記を返します。
func FinanceCitation(v model.FinanceVariant) string {
	if v == model.FinanceSettlement {
		return FinanceSettlementSource
	}
	return FinanceSummarySource
}

// Sources は Manager に渡す出典テーブルです。nil の出典は「ファイルなし」として扱います。
type Sources struct {
	Codes             tabular.Table
	Population        tabular.Table
	AgeGroups         tabular.Table
	FinanceSummary    tabular.Table
	FinanceSettlement tabular.Table
	MyNumber          tabular.Table
	DXComparison      tabular.Table
	DXOnline          tabular.Table
}

// Manager は全出典を保持する問い合わせの入口です。
// 呼び出しごとに必要な表を読み直し、呼び出しをまたぐ状態は持ちません。
type Manager struct {
	codes      *parsers.CodesParser
	population *parsers.PopulationParser
	ageGroups  *parsers.AgeGroupParser
	finance    []*parsers.FinanceParser // 優先順
	myNumber   *parsers.MyNumberParser
	dx         *parsers.DXParser

	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// New は設定に従って出典ファイルを開きます。存在しないファイルは警告を出して読み飛ばします。
func New(cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var src Sources
	var opened []tabular.Table
	open := func(name, rel string, opts tabular.Options) (tabular.Table, error) {
		path := cfg.SourcePath(rel)
		if path == "" {
			logger.Warn("source not configured, skipping", zap.String("source", name))
			return nil, nil
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Warn("source not found, skipping", zap.String("source", name), zap.String("path", path))
			return nil, nil
		}
		t, err := tabular.Open(path, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s source: %w", name, err)
		}
		opened = append(opened, t)
		logger.Info("source registered", zap.String("source", name), zap.String("path", path))
		return t, nil
	}

	csvOpts := tabular.Options{Encoding: cfg.CSVEncoding}
	steps := []struct {
		name string
		rel  string
		opts tabular.Options
		dst  *tabular.Table
	}{
		{"codes", cfg.Sources.Codes, csvOpts, &src.Codes},
		{"population", cfg.Sources.Population, csvOpts, &src.Population},
		{"age_groups", cfg.Sources.AgeGroups, csvOpts, &src.AgeGroups},
		{"finance_summary", cfg.Sources.FinanceSummary, csvOpts, &src.FinanceSummary},
		{"finance_settlement", cfg.Sources.FinanceSettlement, csvOpts, &src.FinanceSettlement},
		{"mynumber", cfg.Sources.MyNumber, tabular.Options{Sheet: parsers.MyNumberSheet, Encoding: cfg.CSVEncoding}, &src.MyNumber},
		{"dx_comparison", cfg.Sources.DXComparison, csvOpts, &src.DXComparison},
		{"dx_online", cfg.Sources.DXOnline, csvOpts, &src.DXOnline},
	}
	for _, s := range steps {
		t, err := open(s.name, s.rel, s.opts)
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, err
		}
		*s.dst = t
	}
	return NewWithSources(src, logger), nil
}

// NewWithSources は開き済みのテーブルから Manager を作ります。
func NewWithSources(src Sources, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{logger: logger}
	if src.Codes != nil {
		m.codes = parsers.NewCodesParser(src.Codes, logger.Named("codes"))
	}
	if src.Population != nil {
		m.population = parsers.NewPopulationParser(src.Population, logger.Named("population"))
	}
	if src.AgeGroups != nil {
		m.ageGroups = parsers.NewAgeGroupParser(src.AgeGroups, logger.Named("age_groups"))
	}
	for _, f := range []struct {
		t tabular.Table
		v model.FinanceVariant
	}{
		{src.FinanceSummary, model.FinanceSummary},
		{src.FinanceSettlement, model.FinanceSettlement},
	} {
		if f.t == nil {
			continue
		}
		p, err := parsers.NewFinanceParser(f.t, f.v, logger.Named("finance"))
		if err != nil {
			// 既知のレイアウトのみを渡しているので到達しない
			logger.Error("finance parser", zap.Error(err))
			continue
		}
		m.finance = append(m.finance, p)
	}
	if src.MyNumber != nil {
		m.myNumber = parsers.NewMyNumberParser(src.MyNumber, logger.Named("mynumber"))
	}
	if src.DXComparison != nil || src.DXOnline != nil {
		m.dx = parsers.NewDXParser(src.DXComparison, src.DXOnline, logger.Named("dx"))
	}
	return m
}

// Available は読み込める出典の一覧です。
func (m *Manager) Available() map[string]bool {
	out := map[string]bool{
		"codes":      m.codes != nil,
		"population": m.population != nil,
		"age_groups": m.ageGroups != nil,
		"mynumber":   m.myNumber != nil,
		"dx":         m.dx != nil,
	}
	for _, f := range m.finance {
		out["finance_"+string(f.Variant())] = true
	}
	return out
}

// Close は全テーブルのハンドルを解放します。2回目以降の呼び出しは何もしません。
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		closers := []interface{ Close() error }{}
		if m.codes != nil {
			closers = append(closers, m.codes)
		}
		if m.population != nil {
			closers = append(closers, m.population)
		}
		if m.ageGroups != nil {
			closers = append(closers, m.ageGroups)
		}
		for _, f := range m.finance {
			closers = append(closers, f)
		}
		if m.myNumber != nil {
			closers = append(closers, m.myNumber)
		}
		if m.dx != nil {
			closers = append(closers, m.dx)
		}
		for _, c := range closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
