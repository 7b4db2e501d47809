package i18n

// ZhCNMessages 简体中文文案 / Simplified Chinese messages
var ZhCNMessages = map[string]string{
	"input.placeholder": "输入消息，回车发送...",

	"panel.chat":     "对话",
	"panel.sessions": "会话",

	"sidebar.sessions": "会话列表",
	"sidebar.model":    "模型",
	"sidebar.context":  "上下文",

	"status.ready":     "就绪",
	"status.streaming": "生成中",

	"chat.no_response": "未收到回复",
	"chat.attachment":  "附件: %s",

	"repl.goodbye":         "再见",
	"repl.busy":            "回复仍在生成中，请等待完成",
	"repl.unknown_command": "未知命令: %s",
	"repl.switched":        "已切换到会话 %s",
	"repl.renamed":         "会话已重命名为 %q",
	"repl.deleted":         "会话已删除",
	"repl.created":         "已创建会话 %s",
	"repl.attached":        "已附加 %s (%s)，将随下一条消息一起发送",
	"repl.model_set":       "模型已切换为 %s",
	"repl.no_session":      "没有该 id 的会话",
}
