package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DeliveryOptimizer/src/config"
	"DeliveryOptimizer/src/datapush"
	"DeliveryOptimizer/src/datasource/email"
	"DeliveryOptimizer/src/datasource/file"
	"DeliveryOptimizer/src/model"
	"DeliveryOptimizer/src/processor"
	"DeliveryOptimizer/src/storage"
	"DeliveryOptimizer/src/utils"

	"github.com/robfig/cron"
)

func main() {
	cfg, err := config.LoadConfig("./config", "config.json")
	if err != nil {
		fmt.Println("加载配置失败，使用默认配置:", err)
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("配置无效:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, cfg.LogMaxBytes)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// 数据管线：加载 -> 合并 -> 特征工程 -> KPI
	loader := file.NewLoader(cfg.DataDir)
	pipeline := processor.NewPipeline(loader, processor.FillPolicy(cfg.FillPolicy))
	predictor := model.NewPredictor(cfg.ModelPath)

	if _, err := pipeline.Refresh(); err != nil {
		logger.Error("初始数据刷新失败: " + err.Error())
	} else {
		logger.Info("初始数据刷新完成")
	}

	// 设置定时任务
	c := cron.New()

	refreshSpec := fmt.Sprintf("@every %s", time.Duration(cfg.RefreshInterval).String())
	err = c.AddFunc(refreshSpec, func() {
		t1 := time.Now()
		kpis, err := pipeline.Refresh()
		if err != nil {
			logger.Error("定时刷新失败: " + err.Error())
			return
		}
		logger.Info(fmt.Sprintf("定时刷新完成(订单数: %d, 耗时: %v)", kpis.TotalOrders, time.Since(t1)))
	})
	if err != nil {
		logger.Error("创建定时刷新任务失败: " + err.Error())
		return
	}

	// 邮箱数据源：配置了账号才启用
	if cfg.Email.Server != "" && cfg.Email.Username != "" {
		emailClient := email.NewEmailClient(
			cfg.Email.Server,
			cfg.Email.Username,
			cfg.Email.Password)
		handler := email.NewAttachmentHandler(cfg.DataDir, logger)

		emailSpec := fmt.Sprintf("@every %s", time.Duration(cfg.Email.CheckInterval).String())
		err = c.AddFunc(emailSpec, func() {
			newEmail, err := email.CheckAndProcessEmails(emailClient, cfg.Email.TargetSubject, logger)
			if err != nil {
				logger.Error("检查处理邮件失败: " + err.Error())
				return
			}
			if newEmail == nil {
				return
			}

			saved, err := handler.HandleEmail(newEmail)
			if err != nil {
				logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
				return
			}
			if len(saved) > 0 {
				logger.Info(fmt.Sprintf("邮件附件更新了数据集: %v", saved))
				if _, err := pipeline.Refresh(); err != nil {
					logger.Error("邮件触发刷新失败: " + err.Error())
				}
			}
		})
		if err != nil {
			logger.Error("创建邮件检查任务失败: " + err.Error())
		}
	}

	c.Start()
	defer c.Stop()

	// 文件监控：数据目录变化时自动刷新
	go watchDataDir(cfg.DataDir, pipeline, logger)

	go startWebUI(cfg, pipeline, predictor, logger)

	logger.Info(fmt.Sprintf("物流分析服务已启动(刷新间隔: %s, HTTP: %s)，按Ctrl+C退出",
		time.Duration(cfg.RefreshInterval), cfg.HTTPAddr))
	waitForShutdown(logger)
}

// watchDataDir 监控数据目录，数据集文件变化后触发刷新
func watchDataDir(dataDir string, pipeline *processor.Pipeline, logger *storage.Logger) {
	monitor, err := file.NewMonitor(dataDir)
	if err != nil {
		logger.Error("启动文件监控失败: " + err.Error())
		return
	}
	defer monitor.Close()

	err = monitor.Watch(func(dataset string) {
		logger.Info("检测到数据集更新: " + dataset)
		if _, err := pipeline.Refresh(); err != nil {
			logger.Error("文件触发刷新失败: " + err.Error())
		}
	})
	if err != nil {
		logger.Error("文件监控错误: " + err.Error())
	}
}

// startWebUI 启动HTTP服务：实时日志、KPI查询、训练与单订单预测
func startWebUI(cfg *config.Config, pipeline *processor.Pipeline, predictor *model.Predictor, logger *storage.Logger) {
	// 实时日志流
	http.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		logChan := logger.Subscribe()

		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprintln(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})

	// 当前KPI汇总
	http.HandleFunc("/kpis", func(w http.ResponseWriter, r *http.Request) {
		kpis := pipeline.KPIs()
		// KPISummary自带MarshalJSON，不能内嵌，否则会吞掉其余字段
		resp := struct {
			KPIs               processor.KPISummary `json:"kpis"`
			DelayRateByWeekday map[string]float64   `json:"delay_rate_by_weekday"`
			RefreshedAt        string               `json:"refreshed_at"`
		}{
			KPIs:               kpis,
			DelayRateByWeekday: processor.DelayRateByWeekday(pipeline.Engineered()),
			RefreshedAt:        pipeline.RefreshedAt().Format(utils.TimeLayout),
		}
		writeJSON(w, http.StatusOK, resp)
	})

	// 手动刷新
	http.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		kpis, err := pipeline.Refresh()
		if err != nil {
			logger.Error("手动刷新失败: " + err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, kpis)
	})

	// 训练延误预测模型
	http.HandleFunc("/train", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		t1 := time.Now()
		result, err := predictor.Train(pipeline.Engineered())
		if err != nil {
			logger.Error("模型训练失败: " + err.Error())
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Info(fmt.Sprintf("模型训练完成(准确率: %.4f, 耗时: %v)", result.Accuracy, time.Since(t1)))
		writeJSON(w, http.StatusOK, result)
	})

	// 单订单延误预测 + 整改建议
	http.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		orderID := r.URL.Query().Get("order_id")
		if orderID == "" {
			http.Error(w, "missing order_id", http.StatusBadRequest)
			return
		}

		row, err := pipeline.FindOrder(orderID)
		if err != nil {
			if errors.Is(err, processor.ErrOrderNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		m, err := predictor.Load()
		if err != nil {
			logger.Error("加载模型失败: " + err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if m == nil {
			http.Error(w, "model not trained", http.StatusConflict)
			return
		}

		prob, err := predictor.PredictOne(m, row)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			OrderID          string   `json:"order_id"`
			DelayProbability float64  `json:"delay_probability"`
			Recommendations  []string `json:"recommendations"`
		}{
			OrderID:          orderID,
			DelayProbability: prob,
			Recommendations:  processor.Advise(row),
		})
	})

	// 生成并发送xlsx报表
	http.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		df := pipeline.Engineered()
		err := datapush.SaveReport(df, pipeline.KPIs(), processor.DelayRateByWeekday(df), cfg.ReportPath)
		if err != nil {
			logger.Error("生成报表失败: " + err.Error())
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Info("报表已生成: " + cfg.ReportPath)

		if cfg.SendEmail.Server != "" && len(cfg.SendEmail.To) > 0 {
			if err := datapush.SendReport(cfg, cfg.ReportPath); err != nil {
				logger.Error("发送报表失败: " + err.Error())
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			logger.Info("报表已发送")
		}

		writeJSON(w, http.StatusOK, map[string]string{"report": cfg.ReportPath})
	})

	if err := http.ListenAndServe(cfg.HTTPAddr, nil); err != nil {
		logger.Error("HTTP服务异常退出: " + err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("写入响应失败: %v", err)
	}
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal: " + sig.String() + ", shutting down...")
	logger.Close()
	os.Exit(0)
}
