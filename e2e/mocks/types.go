package mocks

// ChartBar is one daily bar served by the chart mock.
type ChartBar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ChartMeta is the chart metadata served alongside the bars.
type ChartMeta struct {
	Symbol           string  `json:"symbol"`
	Currency         string  `json:"currency"`
	LongName         string  `json:"longName"`
	GMTOffset        int64   `json:"gmtoffset"`
	FiftyTwoWeekHigh float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  float64 `json:"fiftyTwoWeekLow"`
}

// ChartFixture is the canned history for one symbol.
type ChartFixture struct {
	Meta ChartMeta
	Bars []ChartBar
}

// MessageReply configures the messages mock.
type MessageReply struct {
	Text       string
	StatusCode int    // non-200 returns an error envelope
	ErrorType  string // error envelope type, e.g. "overloaded_error"
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}
