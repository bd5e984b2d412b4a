package oanda

type accountSummary struct {
	Account struct {
		ID             string `json:"id"`
		Currency       string `json:"currency"`
		Balance        string `json:"balance"`
		NAV            string `json:"NAV"`
		UnrealizedPL   string `json:"unrealizedPL"`
		OpenTradeCount int    `json:"openTradeCount"`
	} `json:"account"`
}

type priceRef struct {
	Price string `json:"price"`
}

type apiTrade struct {
	ID              string    `json:"id"`
	Instrument      string    `json:"instrument"`
	Price           string    `json:"price"`
	CurrentUnits    string    `json:"currentUnits"`
	UnrealizedPL    string    `json:"unrealizedPL"`
	StopLossOrder   *priceRef `json:"stopLossOrder,omitempty"`
	TakeProfitOrder *priceRef `json:"takeProfitOrder,omitempty"`
}

type openTradesResponse struct {
	Trades []apiTrade `json:"trades"`
}

type apiPrice struct {
	Instrument string     `json:"instrument"`
	Time       string     `json:"time"`
	Tradeable  bool       `json:"tradeable"`
	Bids       []priceRef `json:"bids"`
	Asks       []priceRef `json:"asks"`
}

type pricingResponse struct {
	Prices []apiPrice `json:"prices"`
}

type apiInstrument struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	PipLocation         int    `json:"pipLocation"`
	DisplayPrecision    int    `json:"displayPrecision"`
	TradeUnitsPrecision int    `json:"tradeUnitsPrecision"`
	MinimumTradeSize    string `json:"minimumTradeSize"`
	MaximumOrderUnits   string `json:"maximumOrderUnits"`
}

type instrumentsResponse struct {
	Instruments []apiInstrument `json:"instruments"`
}

type clientExtensions struct {
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type marketOrder struct {
	Type             string           `json:"type"`
	Instrument       string           `json:"instrument"`
	Units            string           `json:"units"`
	PriceBound       string           `json:"priceBound,omitempty"`
	TimeInForce      string           `json:"timeInForce"`
	PositionFill     string           `json:"positionFill"`
	StopLossOnFill   *priceRef        `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill *priceRef        `json:"takeProfitOnFill,omitempty"`
	ClientExtensions clientExtensions `json:"clientExtensions"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type orderResponse struct {
	OrderFillTransaction *struct {
		ID          string `json:"id"`
		Price       string `json:"price"`
		Time        string `json:"time"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
		} `json:"tradeOpened,omitempty"`
	} `json:"orderFillTransaction,omitempty"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction,omitempty"`
}
