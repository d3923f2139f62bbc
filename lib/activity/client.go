// Package activity scrapes and submits the forms of the activity tracking
// site. The site is an ASP.NET app: every state changing form carries a
// hidden anti-forgery token that must be echoed back in the POST, and the
// token is bound to a cookie, so all requests go through one cookie jar.
package activity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"activity-keeper/internal/components/telemetry"
	"activity-keeper/lib/htmlutil"
	"activity-keeper/lib/restyutil"
	libtelemetry "activity-keeper/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

var tracer = libtelemetry.Tracer("activity-keeper/lib/activity")

const (
	report_client_ping   = "client.ping"
	report_client_login  = "client.login"
	report_client_logout = "client.logout"
)

var (
	// ErrTokenNotFound means the page had no anti-forgery token for the form.
	ErrTokenNotFound = errors.New("could not find anti-forgery token")
	// ErrUnavailable means the site answered with an error status.
	ErrUnavailable = errors.New("site unavailable")
	// ErrRejected means the site answered the POST with validation errors.
	ErrRejected = errors.New("site rejected the form")
	// ErrNoPassword means a login was attempted without an access code.
	ErrNoPassword = errors.New("no password configured")
)

const (
	DefaultBaseUrl       = "http://103.186.19.214:86"
	DefaultActivityPath  = "/?p=SLN8t5i"
	DefaultLoginPath     = "/Activity/Login"
	DefaultLogoutPath    = "/Activity/Logout"
	DefaultTokenField    = "__RequestVerificationToken"
	DefaultPasswordField = "password"
	DefaultTimeout       = 15 * time.Second
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type ClientOptions struct {
	BaseUrl       string
	ActivityPath  string
	LoginPath     string
	LogoutPath    string
	TokenField    string
	PasswordField string
	Timeout       time.Duration
	UserAgent     string
	// DisableCloudflareBypass keeps the stock transport, tests against
	// httptest servers set this.
	DisableCloudflareBypass bool
	// Dump receives raw request/response dumps in verbose mode.
	Dump restyutil.InstrumentOutput
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.BaseUrl == "" {
		o.BaseUrl = DefaultBaseUrl
	}
	if o.ActivityPath == "" {
		o.ActivityPath = DefaultActivityPath
	}
	if o.LoginPath == "" {
		o.LoginPath = DefaultLoginPath
	}
	if o.LogoutPath == "" {
		o.LogoutPath = DefaultLogoutPath
	}
	if o.TokenField == "" {
		o.TokenField = DefaultTokenField
	}
	if o.PasswordField == "" {
		o.PasswordField = DefaultPasswordField
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts ClientOptions
	tel  telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	opts = opts.withDefaults()
	tel = telemetry.NewScopedAPI("activity", tel)

	baseUrl, err := url.Parse(strings.TrimSuffix(opts.BaseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(baseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if !opts.DisableCloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", opts.UserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	restyutil.InstrumentClient(client, restyutil.InstrumentOptions{
		Tracer:         tracer,
		Output:         opts.Dump,
		SecretFormKeys: []string{opts.PasswordField, opts.TokenField},
	})

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
		tel:     tel,
	}, nil
}

// Options returns the options the client was built with, defaults filled in.
func (c *Client) Options() ClientOptions {
	return c.opts
}

func checkStatus(res *resty.Response) error {
	if res.StatusCode() >= 400 {
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, res.Request.Method, res.Request.URL, res.Status())
	}
	return nil
}

func (c *Client) fetchActivityPage(ctx context.Context) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.opts.ActivityPath)
	if err != nil {
		return nil, fmt.Errorf("fetch activity page: %w", err)
	}
	err = checkStatus(res)
	if err != nil {
		return nil, fmt.Errorf("fetch activity page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse activity page: %w", err)
	}
	return doc, nil
}

// FormToken scrapes the anti-forgery token of the form posting to `action`.
func FormToken(doc *goquery.Document, action, field string) (string, error) {
	token, ok := htmlutil.FormInputValue(doc, action, field)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, htmlutil.FormInputSelector(action, field))
	}
	return token, nil
}

// validationErrors returns the messages of an ASP.NET validation summary.
func validationErrors(doc *goquery.Document) []string {
	messages := htmlutil.Texts(doc.Find(".validation-summary-errors li"))
	if len(messages) > 0 {
		return messages
	}
	return htmlutil.Texts(doc.Find(".validation-summary-errors"))
}

func (c *Client) submit(ctx context.Context, action string, form map[string]string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(action)
	if err != nil {
		return fmt.Errorf("post %s: %w", action, err)
	}
	err = checkStatus(res)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		// the POST went through, an unreadable body says nothing about rejection
		c.tel.ReportWarning("client.submit", fmt.Errorf("parse response of %s: %w", action, err))
		return nil
	}
	if messages := validationErrors(doc); len(messages) > 0 {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(messages, "; "))
	}
	return nil
}

// Ping fetches the activity page, any transport error or error status
// means the site is down.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Ping")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.opts.ActivityPath)
	if err == nil {
		err = checkStatus(res)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "site is down")
		c.tel.ReportWarning(report_client_ping, err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Login submits the login form with the given access code.
func (c *Client) Login(ctx context.Context, password string) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	loginError := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		c.tel.ReportBroken(report_client_login, err)
		return fmt.Errorf("login: %w", err)
	}

	if password == "" {
		return loginError(ErrNoPassword)
	}

	doc, err := c.fetchActivityPage(ctx)
	if err != nil {
		return loginError(err)
	}
	token, err := FormToken(doc, c.opts.LoginPath, c.opts.TokenField)
	if err != nil {
		return loginError(err)
	}

	err = c.submit(ctx, c.opts.LoginPath, map[string]string{
		c.opts.TokenField:    token,
		c.opts.PasswordField: password,
	})
	if err != nil {
		return loginError(err)
	}
	return nil
}

// Logout refreshes the activity page and submits its logout form.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	logoutError := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "logout failed")
		c.tel.ReportBroken(report_client_logout, err)
		return fmt.Errorf("logout: %w", err)
	}

	doc, err := c.fetchActivityPage(ctx)
	if err != nil {
		return logoutError(err)
	}
	token, err := FormToken(doc, c.opts.LogoutPath, c.opts.TokenField)
	if err != nil {
		return logoutError(err)
	}

	err = c.submit(ctx, c.opts.LogoutPath, map[string]string{
		c.opts.TokenField: token,
	})
	if err != nil {
		return logoutError(err)
	}
	return nil
}
