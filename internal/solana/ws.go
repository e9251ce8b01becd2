package solana

// Request is a JSON-RPC request frame sent over a WebSocket connection.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// SubscribeRequest builds the programSubscribe request for programID with
// jsonParsed encoding.
func SubscribeRequest(programID string) Request {
	return Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "programSubscribe",
		Params: []interface{}{
			programID,
			map[string]string{"encoding": "jsonParsed"},
		},
	}
}
