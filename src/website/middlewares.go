package website

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"git.handmade.network/hmn/postmerge/src/logging"
	"git.handmade.network/hmn/postmerge/src/perf"
	"git.handmade.network/hmn/postmerge/src/utils"
)

const ActorHeader = "X-HMN-Actor"

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		var err error
		defer func() {
			if err != nil {
				res = c.ErrorResponse(http.StatusInternalServerError, err)
			}
		}()
		defer utils.RecoverPanicAsError(&err)

		return h(c)
	}
}

func trackRequestPerf(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		c.Perf = perf.MakeNewRequestPerf(c.Route, c.Req.Method, c.Req.URL.Path)
		c.ctx = perf.AttachPerf(c.ctx, c.Perf)

		res := h(c)

		c.Perf.EndRequest()
		requestDuration.WithLabelValues(c.Route, strconv.Itoa(res.StatusCode)).Observe(c.Perf.End.Sub(c.Perf.Start).Seconds())
		log := c.Logger.Info()
		blockStack := make([]time.Time, 0)
		for i, block := range c.Perf.Blocks {
			for len(blockStack) > 0 && block.End.After(blockStack[len(blockStack)-1]) {
				blockStack = blockStack[:len(blockStack)-1]
			}
			log.Str(fmt.Sprintf("[%4.d] At %9.2fms", i, c.Perf.MsFromStart(&block)), fmt.Sprintf("%*.s[%s] %s (%.4fms)", len(blockStack)*2, "", block.Category, block.Description, block.DurationMs()))
			blockStack = append(blockStack, block.End)
		}
		log.Msg(fmt.Sprintf("Served [%s] %s in %.4fms", c.Perf.Method, c.Perf.Path, float64(c.Perf.End.Sub(c.Perf.Start).Nanoseconds())/1000/1000))

		return res
	}
}

// Requires the acting moderator's user id in the X-HMN-Actor header.
func needsActor(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		actorID, err := strconv.Atoi(c.Req.Header.Get(ActorHeader))
		if err != nil || actorID < 1 {
			return c.ErrorResponse(http.StatusUnauthorized, NewSafeError(err, "missing or invalid %s header", ActorHeader))
		}
		c.ActorID = actorID

		logger := c.Logger.With().Int("actor_id", actorID).Logger()
		c.Logger = &logger
		c.ctx = logging.AttachLoggerToContext(c.Logger, c.ctx)

		return h(c)
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
