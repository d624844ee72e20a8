package web

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// The authorization endpoint redirects the user's browser here with
// the code in the query string; the page shows it so they can paste it
// back into the chat. html/template escaping matters: the code is
// attacker-controlled input.
var authCodeTmpl = template.Must(template.New("auth").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Authorization Code</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        code { font-size: 1.4em; background: #eee; padding: 8px 16px; display: inline-block; }
    </style>
</head>
<body>
    <h1>Almost there!</h1>
    {{if .Code}}
    <p>Copy this code and paste it back into the chat:</p>
    <p><code>{{.Code}}</code></p>
    {{else}}
    <p>No code arrived. Start the authenticate flow again from the chat.</p>
    {{end}}
</body>
</html>
`))

var homeTmpl = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>PostrChild</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
    </style>
</head>
<body>
    <h1>PostrChild</h1>
    <p>A chat bot that posts notes, photos, replies, likes, reposts and RSVPs to your own site over micropub.</p>
    <p>Message the bot and type <strong>help</strong> to get started.</p>
</body>
</html>
`))

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTmpl.Execute(w, nil); err != nil {
		s.log.Error().Err(err).Msg("rendering home page")
	}
}

func (s *Server) handleAuthCode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Code string }{Code: r.URL.Query().Get("code")}
	if err := authCodeTmpl.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("rendering auth code page")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.cfg.AdminKey == "" || body.Key != s.cfg.AdminKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.accounts.Count(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stats query failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"accounts": n})
}
