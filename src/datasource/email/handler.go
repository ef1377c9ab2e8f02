// handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"DeliveryOptimizer/src/datasource/file"
	"DeliveryOptimizer/src/storage"
)

// AttachmentHandler 附件处理器
// 把邮件里识别出的数据集附件保存到数据目录，供后续刷新流程读取。
type AttachmentHandler struct {
	dataDir       string
	logger        *storage.Logger
	mu            sync.RWMutex
	processedUIDs map[uint32]bool // 已处理邮件UID，避免重复落盘
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(dataDir string, logger *storage.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		dataDir:       dataDir,
		logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// Processed 查询邮件是否已处理(线程安全)
func (h *AttachmentHandler) Processed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// HandleEmail 保存邮件中可识别的数据集附件
// 返回成功落盘的数据集名称列表。
func (h *AttachmentHandler) HandleEmail(email *Email) ([]string, error) {
	if email == nil {
		return nil, nil
	}
	if h.Processed(email.UID) {
		return nil, nil
	}

	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	var saved []string
	for _, att := range email.Attachments {
		dataset, target, ok := recognizeAttachment(att.Filename)
		if !ok {
			h.logger.Debug(fmt.Sprintf("忽略无法识别的附件: %s", att.Filename))
			continue
		}

		path := filepath.Join(h.dataDir, target)
		if err := os.WriteFile(path, att.Content, 0644); err != nil {
			h.logger.Error(fmt.Sprintf("保存附件失败 %s: %v", att.Filename, err))
			continue
		}

		h.logger.Info(fmt.Sprintf("附件已保存: %s -> %s", att.Filename, path))
		saved = append(saved, dataset)
	}

	h.mu.Lock()
	h.processedUIDs[email.UID] = true
	h.mu.Unlock()

	return saved, nil
}

// recognizeAttachment 按数据集文件名识别附件
// 附件名与某个数据集的csv同名(或同名xlsx)时认领该附件。
func recognizeAttachment(filename string) (dataset, target string, ok bool) {
	base := strings.ToLower(filepath.Base(filename))
	ext := filepath.Ext(base)
	if ext != ".csv" && ext != ".xlsx" {
		return "", "", false
	}
	stem := strings.TrimSuffix(base, ext)

	for _, name := range file.DatasetNames {
		csvName := file.FileName(name)
		if stem == strings.TrimSuffix(csvName, filepath.Ext(csvName)) {
			return name, stem + ext, true
		}
	}
	return "", "", false
}
