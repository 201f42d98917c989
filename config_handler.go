package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"jichitai/config"
	"jichitai/tabular"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ヘルパー関数: エラーをJSONで返す
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// GetConfigHandler は現在の設定を返します
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := config.GetConfig()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}
}

// SaveConfigHandler は設定を保存します。出典の読み直しは行いません。
func SaveConfigHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
			return
		}

		if err := validateFolderPath(newCfg.DataDir); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch strings.ToLower(newCfg.CSVEncoding) {
		case "", tabular.EncodingAuto, tabular.EncodingUTF8, tabular.EncodingShiftJIS:
		default:
			writeJSONError(w, "csv_encoding は auto / utf-8 / shift_jis のいずれかです: "+newCfg.CSVEncoding, http.StatusBadRequest)
			return
		}
		newCfg.CSVEncoding = strings.ToLower(newCfg.CSVEncoding)

		if newCfg.LogLevel != "" {
			if _, err := zapcore.ParseLevel(newCfg.LogLevel); err != nil {
				writeJSONError(w, "log_level が不正です: "+newCfg.LogLevel, http.StatusBadRequest)
				return
			}
		}

		if err := config.SaveConfig(newCfg); err != nil {
			logger.Error("failed to save config", zap.String("path", config.Path()), zap.Error(err))
			writeJSONError(w, "設定の保存に失敗しました。", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "設定を保存しました。"})
	}
}

// フォルダパスを検証するヘルパー関数
func validateFolderPath(path string) error {
	if path == "" {
		return nil // 空の場合は既定値を使う
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("指定されたフォルダパスが見つかりません: " + path)
		}
		return errors.New("フォルダパスの確認中にエラーが発生しました。")
	}
	if !info.IsDir() {
		return errors.New("指定されたパスはフォルダではありません: " + path)
	}
	return nil
}
