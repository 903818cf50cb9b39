package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Evan-Ewald-Richardson/TREES/internal/shared/wire"
)

var (
	ErrNotConnected = errors.New("athlete not connected")
	ErrUpstream     = errors.New("strava request failed")
)

// Token is the slice of Strava's OAuth response we keep.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	AthleteID    int64  `json:"athlete_id"`
}

// Activity is one ride from the athlete's feed.
type Activity struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SportType  string    `json:"sport_type"`
	DistanceM  float64   `json:"distance"`
	MovingTime int       `json:"moving_time"`
	StartDate  time.Time `json:"start_date"`
}

// Service talks to the Strava API and keeps per-athlete tokens in redis so
// any instance can serve a connected athlete.
type Service struct {
	http         *http.Client
	redis        *redis.Client
	clientID     string
	clientSecret string
	baseURL      string
}

func NewService(redisClient *redis.Client, clientID, clientSecret, baseURL string) *Service {
	if baseURL == "" {
		baseURL = "https://www.strava.com"
	}
	return &Service{
		http:         &http.Client{Timeout: 30 * time.Second},
		redis:        redisClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// AuthURL builds the browser URL that starts the OAuth dance.
func (s *Service) AuthURL(redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("approval_prompt", "auto")
	q.Set("scope", "activity:read_all")
	return s.baseURL + "/oauth/authorize?" + q.Encode()
}

// Exchange trades an authorization code for tokens and remembers them.
func (s *Service) Exchange(ctx context.Context, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
		Athlete      struct {
			ID int64 `json:"id"`
		} `json:"athlete"`
	}
	if err := s.postForm(ctx, "/oauth/token", form, &resp); err != nil {
		return Token{}, err
	}

	token := Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
		AthleteID:    resp.Athlete.ID,
	}
	if err := s.saveToken(ctx, token); err != nil {
		return Token{}, err
	}
	return token, nil
}

// Activities lists the athlete's recent rides.
func (s *Service) Activities(ctx context.Context, athleteID int64, page, perPage int) ([]Activity, error) {
	token, err := s.freshToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 30
	}

	endpoint := fmt.Sprintf("/api/v3/athlete/activities?page=%d&per_page=%d", page, perPage)
	var activities []Activity
	if err := s.getJSON(ctx, endpoint, token.AccessToken, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// ActivityPoints fetches an activity's streams and reshapes them into
// timestamped track points.
func (s *Service) ActivityPoints(ctx context.Context, athleteID, activityID int64) (wire.Track, error) {
	token, err := s.freshToken(ctx, athleteID)
	if err != nil {
		return wire.Track{}, err
	}

	var detail struct {
		Name      string    `json:"name"`
		StartDate time.Time `json:"start_date"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("/api/v3/activities/%d", activityID), token.AccessToken, &detail); err != nil {
		return wire.Track{}, err
	}

	var streams struct {
		LatLng struct {
			Data [][2]float64 `json:"data"`
		} `json:"latlng"`
		Time struct {
			Data []int `json:"data"`
		} `json:"time"`
		Altitude struct {
			Data []float64 `json:"data"`
		} `json:"altitude"`
	}
	endpoint := fmt.Sprintf("/api/v3/activities/%d/streams?keys=latlng,time,altitude&key_by_type=true", activityID)
	if err := s.getJSON(ctx, endpoint, token.AccessToken, &streams); err != nil {
		return wire.Track{}, err
	}

	track := wire.Track{Name: detail.Name}
	for i, ll := range streams.LatLng.Data {
		point := wire.Point{Lat: ll[0], Lon: ll[1]}
		if i < len(streams.Time.Data) {
			ts := detail.StartDate.Add(time.Duration(streams.Time.Data[i]) * time.Second)
			point.Time = &ts
		}
		if i < len(streams.Altitude.Data) {
			ele := streams.Altitude.Data[i]
			point.Ele = &ele
		}
		track.Points = append(track.Points, point)
	}
	return track, nil
}

// freshToken loads the stored token, refreshing it when close to expiry.
func (s *Service) freshToken(ctx context.Context, athleteID int64) (Token, error) {
	raw, err := s.redis.Get(ctx, tokenKey(athleteID)).Result()
	if errors.Is(err, redis.Nil) {
		return Token{}, ErrNotConnected
	}
	if err != nil {
		return Token{}, err
	}

	var token Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return Token{}, err
	}

	if time.Now().Unix() < token.ExpiresAt-60 {
		return token, nil
	}

	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", token.RefreshToken)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := s.postForm(ctx, "/oauth/token", form, &resp); err != nil {
		return Token{}, err
	}

	token.AccessToken = resp.AccessToken
	token.RefreshToken = resp.RefreshToken
	token.ExpiresAt = resp.ExpiresAt
	if err := s.saveToken(ctx, token); err != nil {
		return Token{}, err
	}
	return token, nil
}

func (s *Service) saveToken(ctx context.Context, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, tokenKey(token.AthleteID), raw, 0).Err()
}

func (s *Service) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %s", ErrUpstream, endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Service) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %s", ErrUpstream, endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func tokenKey(athleteID int64) string {
	return "strava:token:" + strconv.FormatInt(athleteID, 10)
}
