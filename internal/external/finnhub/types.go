package finnhub

// Transport shapes of the Finnhub REST API

type symbolRow struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"displaySymbol"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	MIC           string `json:"mic"`
	Currency      string `json:"currency"`
}

type profile2 struct {
	Ticker               string  `json:"ticker"`
	Name                 string  `json:"name"`
	Exchange             string  `json:"exchange"`
	Currency             string  `json:"currency"`
	Country              string  `json:"country"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	MarketCapitalization float64 `json:"marketCapitalization"` // millions
}

type quote struct {
	Current   float64  `json:"c"`
	Change    float64  `json:"d"`
	Percent   float64  `json:"dp"`
	High      float64  `json:"h"`
	Low       float64  `json:"l"`
	Open      float64  `json:"o"`
	PrevClose float64  `json:"pc"`
	Timestamp int64    `json:"t"`
	Volume    *float64 `json:"v"` // not always sent
}

type basicFinancials struct {
	Symbol string                 `json:"symbol"`
	Metric map[string]interface{} `json:"metric"`
}

type candles struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

type earningsRow struct {
	Actual          *float64 `json:"actual"`
	Estimate        *float64 `json:"estimate"`
	Period          string   `json:"period"`
	Surprise        *float64 `json:"surprise"`
	SurprisePercent *float64 `json:"surprisePercent"`
	Symbol          string   `json:"symbol"`
}

type earningsCalendar struct {
	EarningsCalendar []struct {
		Date   string `json:"date"`
		Hour   string `json:"hour"`
		Symbol string `json:"symbol"`
	} `json:"earningsCalendar"`
}
