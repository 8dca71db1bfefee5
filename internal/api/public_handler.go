package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"eventFlow/internal/analytics"
	"eventFlow/internal/api/middleware"
	"eventFlow/internal/content"
	"eventFlow/internal/database"
	"eventFlow/internal/qr"
	"eventFlow/internal/tasks"
)

// PublicHandler 负责无需登录的落地页访问与报名提交。
type PublicHandler struct {
	db            *gorm.DB
	asynqClient   *asynq.Client
	tracker       *analytics.Tracker
	logger        *slog.Logger
	publicBaseURL string
}

// NewPublicHandler 构造 PublicHandler。
func NewPublicHandler(
	db *gorm.DB,
	asynqClient *asynq.Client,
	tracker *analytics.Tracker,
	logger *slog.Logger,
	publicBaseURL string,
) *PublicHandler {
	return &PublicHandler{
		db:            db,
		asynqClient:   asynqClient,
		tracker:       tracker,
		logger:        logger,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// liveEventBySlug 查找 active 状态的活动，找不到即 404。
func (h *PublicHandler) liveEventBySlug(c *gin.Context) (database.Event, bool) {
	slug := c.Param("slug")
	if slug == "" {
		NotFound(c, "page not found")
		return database.Event{}, false
	}

	var event database.Event
	err := h.db.WithContext(c.Request.Context()).
		Where("slug = ? AND status = ?", slug, string(content.StatusActive)).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "page not found")
		} else {
			Internal(c, "failed to load page")
		}
		return database.Event{}, false
	}
	return event, true
}

// ShowPage 渲染公开落地页并记录一次浏览。
func (h *PublicHandler) ShowPage(c *gin.Context) {
	event, ok := h.liveEventBySlug(c)
	if !ok {
		return
	}

	doc, err := content.Decode(event.Content)
	if err != nil {
		requestLogger(c, h.logger).Error("decode event content failed",
			slog.Uint64("event_id", uint64(event.ID)),
			slog.Any("error", err),
		)
		Internal(c, "failed to render page")
		return
	}

	if h.tracker != nil {
		visitorID := c.ClientIP() + "|" + c.Request.UserAgent()
		h.tracker.RecordView(c.Request.Context(), event.ID, visitorID)
	}

	page := renderPublicPage(event, doc)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

type registerResponse struct {
	RegistrationID uint   `json:"registration_id"`
	QRCodeDataURI  string `json:"qr_code_data_uri"`
}

// Register 接收报名表单，生成签到二维码并异步发送确认邮件。
func (h *PublicHandler) Register(c *gin.Context) {
	event, ok := h.liveEventBySlug(c)
	if !ok {
		return
	}

	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		BadRequest(c, "invalid form payload")
		return
	}

	doc, err := content.Decode(event.Content)
	if err != nil {
		Internal(c, "failed to load form definition")
		return
	}

	if missing := content.MissingFields(doc.FormFields, values); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "required fields missing",
			"missing_fields": missing,
		})
		return
	}

	email := strings.TrimSpace(values["email"])
	if email == "" {
		for _, field := range doc.FormFields {
			if field.Type == content.FieldEmail {
				email = strings.TrimSpace(values[field.ID])
				break
			}
		}
	}
	if email == "" {
		BadRequest(c, "email is required")
		return
	}

	details, err := json.Marshal(values)
	if err != nil {
		Internal(c, "failed to encode registration")
		return
	}

	registration := database.Registration{
		EventID: event.ID,
		Email:   email,
		Details: datatypes.JSON(details),
		QRToken: uuid.NewString(),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&registration).Error; err != nil {
		Internal(c, "failed to save registration")
		return
	}

	qrURI, err := qr.DataURI(qr.CheckInURL(h.publicBaseURL, registration.QRToken), 0)
	if err != nil {
		requestLogger(c, h.logger).Error("generate qr failed", slog.Any("error", err))
		Internal(c, "failed to generate qr code")
		return
	}

	// 确认邮件走队列，发信失败不影响报名本身。
	if h.asynqClient != nil {
		correlationID := middleware.GetCorrelationID(c)
		if task, err := tasks.NewEmailConfirmationTask(registration.ID, correlationID); err == nil {
			if _, err := h.asynqClient.EnqueueContext(c.Request.Context(), task, asynq.MaxRetry(5)); err != nil {
				requestLogger(c, h.logger).Error("enqueue confirmation task failed", slog.Any("error", err))
			}
		}
	}

	c.JSON(http.StatusCreated, registerResponse{
		RegistrationID: registration.ID,
		QRCodeDataURI:  qrURI,
	})
}

// TrackClick 记录行动按钮点击，始终返回 204。
func (h *PublicHandler) TrackClick(c *gin.Context) {
	event, ok := h.liveEventBySlug(c)
	if !ok {
		return
	}
	if h.tracker != nil {
		visitorID := c.ClientIP() + "|" + c.Request.UserAgent()
		h.tracker.RecordClick(c.Request.Context(), event.ID, visitorID)
	}
	c.Status(http.StatusNoContent)
}

// renderPublicPage 拼出完整的落地页 HTML。
// 表单放在隐藏弹层里，由 data-open-form 按钮唤起；点击上报是 fire-and-forget。
func renderPublicPage(event database.Event, doc content.Document) string {
	var b strings.Builder

	title := doc.Name
	if title == "" {
		title = event.Name
	}

	b.WriteString("<!DOCTYPE html>\n<html lang=\"zh-CN\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<script src=\"https://cdn.tailwindcss.com\"></script>\n")
	b.WriteString("</head>\n<body class=\"bg-gray-50 text-gray-900\">\n")

	b.WriteString(content.RenderDocument(doc, content.RenderContext{}))

	formTitle := doc.FormTitle
	if formTitle == "" {
		formTitle = "报名参加"
	}
	b.WriteString("<div id=\"registration-modal\" class=\"fixed inset-0 z-50 hidden items-center justify-center bg-black/50 p-4\">\n")
	b.WriteString("<div class=\"w-full max-w-md rounded-xl bg-white p-6 shadow-xl\">\n")
	fmt.Fprintf(&b, "<h2 class=\"mb-4 text-xl font-bold\">%s</h2>\n", html.EscapeString(formTitle))
	b.WriteString(content.RenderForm(doc.FormFields, ""))
	b.WriteString("<button type=\"button\" data-close-form class=\"mt-2 w-full rounded-lg p-2 text-sm text-gray-500\">关闭</button>\n")
	b.WriteString("</div>\n</div>\n")

	fmt.Fprintf(&b, "<script>%s</script>\n", publicPageScript(event.Slug))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// publicPageScript 返回落地页的行为脚本：弹层开关、点击上报、报名提交。
func publicPageScript(slug string) string {
	return fmt.Sprintf(`(function(){
var slug=%q;
var modal=document.getElementById('registration-modal');
function openModal(){if(modal){modal.classList.remove('hidden');modal.classList.add('flex');}}
function closeModal(){if(modal){modal.classList.add('hidden');modal.classList.remove('flex');}}
document.addEventListener('click',function(e){
  var el=e.target.closest('[data-track="click"]');
  if(el){
    try{
      var payload=JSON.stringify({});
      if(navigator.sendBeacon){navigator.sendBeacon('/p/'+slug+'/click',payload);}
      else{fetch('/p/'+slug+'/click',{method:'POST',keepalive:true}).catch(function(){});}
    }catch(err){}
  }
  if(e.target.closest('[data-open-form]')){e.preventDefault();openModal();}
  if(e.target.closest('[data-close-form]')){closeModal();}
});
var form=document.querySelector('#registration-modal form');
if(form){form.addEventListener('submit',function(e){
  e.preventDefault();
  var values={};
  new FormData(form).forEach(function(v,k){values[k]=v;});
  fetch('/p/'+slug+'/register',{
    method:'POST',
    headers:{'Content-Type':'application/json'},
    body:JSON.stringify(values)
  }).then(function(resp){
    if(!resp.ok){throw new Error('register failed');}
    return resp.json();
  }).then(function(data){
    form.innerHTML='<p class="text-center">报名成功！签到二维码已发送到你的邮箱。</p>'+
      '<img class="mx-auto mt-4" width="192" height="192" src="'+data.qr_code_data_uri+'" alt="签到二维码">';
  }).catch(function(){
    alert('报名失败，请稍后再试');
  });
});}
})();`, slug)
}
