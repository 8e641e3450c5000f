package render

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Renderer fetches a page with a JS-capable browser and returns the final
// DOM HTML after lazy-loaded content has been triggered.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

const maxScrollPasses = 4

// ChromeRenderer renders pages in headless Chrome, reusing browser
// allocator contexts across calls.
type ChromeRenderer struct {
	timeout time.Duration
	logger  *zap.Logger
	ctxPool sync.Pool
}

func NewChromeRenderer(pageTimeout time.Duration, logger *zap.Logger) *ChromeRenderer {
	r := &ChromeRenderer{timeout: pageTimeout, logger: logger}
	r.ctxPool.New = func() interface{} {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1920, 1080),
		)
		allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
		return allocCtx
	}
	return r
}

// Render navigates to url, waits for the body, scrolls to the bottom a
// bounded number of times until the document height stabilizes, then
// returns the outer HTML of the rendered document.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	allocCtx := r.ctxPool.Get().(context.Context)
	defer r.ctxPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.timeout)
	defer cancelTimeout()

	// Honor the caller's deadline as well as our own page timeout.
	if deadline, ok := ctx.Deadline(); ok {
		var cancelOuter context.CancelFunc
		taskCtx, cancelOuter = context.WithDeadline(taskCtx, deadline)
		defer cancelOuter()
	}

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(r.scrollToBottom),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	r.logger.Debug("rendered page", zap.String("url", url), zap.Int("bytes", len(html)))
	return html, nil
}

func (r *ChromeRenderer) scrollToBottom(ctx context.Context) error {
	var lastHeight int64
	if err := chromedp.Evaluate(`document.body.scrollHeight`, &lastHeight).Do(ctx); err != nil {
		return err
	}
	for i := 0; i < maxScrollPasses; i++ {
		if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, nil).Do(ctx); err != nil {
			return err
		}
		if err := chromedp.Sleep(time.Second).Do(ctx); err != nil {
			return err
		}
		var height int64
		if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
			return err
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}
	// Back to the top so everything stays in the DOM.
	return chromedp.Evaluate(`window.scrollTo(0, 0); true`, nil).Do(ctx)
}
