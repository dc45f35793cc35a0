package api

type SampleRequest struct {
	Seed        string   `json:"seed"`
	Length      *int     `json:"length,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Advance     bool     `json:"advance,omitempty"`
	RNGSeed     *int64   `json:"rng_seed,omitempty"`
}

type SampleResponse struct {
	ID          string  `json:"id"`
	Object      string  `json:"object"`
	CreatedAt   int64   `json:"created_at"`
	Text        string  `json:"text"`
	Seed        string  `json:"seed"`
	Length      int     `json:"length"`
	Temperature float64 `json:"temperature"`
	Advanced    bool    `json:"advanced"`
	// Entropy is the entropy in nats of the distribution the first symbol
	// was drawn from.
	Entropy float64 `json:"entropy"`
}

type AdvanceRequest struct {
	Text string `json:"text"`
}

type StateResponse struct {
	Object string `json:"object"`
	Action string `json:"action"`
	Fed    int    `json:"fed,omitempty"`
}

type DeleteSampleResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type SampleList struct {
	Object string           `json:"object"`
	Data   []SampleResponse `json:"data"`
}

type ModelResponse struct {
	Object       string   `json:"object"`
	Variant      string   `json:"variant"`
	Vocab        int      `json:"vocab"`
	Hidden       int      `json:"hidden"`
	Layers       int      `json:"layers"`
	Params       int      `json:"params"`
	LearningRate float64  `json:"learning_rate"`
	Alphabet     []string `json:"alphabet"`
	Run          *RunInfo `json:"run,omitempty"`
}

type RunInfo struct {
	ID         string  `json:"id"`
	Step       int     `json:"step"`
	Loop       int     `json:"loop"`
	SmoothLoss float64 `json:"smooth_loss"`
	CreatedAt  int64   `json:"created_at,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
