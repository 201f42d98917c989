package automation

import (
	"encoding/json"
	"net/http"

	"jichitai/config"

	"go.uber.org/zap"
)

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// FetchSourcesHandler は設定された公表ファイルを取得します。
// 1件以上保存できた場合は onFetched を呼び、出典を開き直させます。
func FetchSourcesHandler(d Downloader, logger *zap.Logger, onFetched func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		cfg := config.GetConfig()
		if len(cfg.Fetch.Targets) == 0 {
			writeJSONError(w, "取得対象が設定されていません。設定画面で fetch.targets を入力してください。", http.StatusBadRequest)
			return
		}

		results, err := FetchAll(r.Context(), d, cfg, logger)
		if err != nil {
			writeJSONError(w, "取得処理が中断されました: "+err.Error(), http.StatusInternalServerError)
			return
		}

		saved := 0
		for _, res := range results {
			if res.Error == "" {
				saved++
			}
		}
		status := "success"
		if saved < len(results) {
			status = "partial"
		}
		if saved > 0 && onFetched != nil {
			if err := onFetched(); err != nil {
				writeJSONError(w, "出典の再読み込みに失敗: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  status,
			"saved":   saved,
			"results": results,
		})
	}
}
