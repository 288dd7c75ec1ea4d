package client

// View は画面のアクセス区分。
type View int

const (
	// ViewProtected はログインが必要な画面。
	ViewProtected View = iota
	// ViewPublicOnly はログイン済みでは表示しない画面（ログイン・登録）。
	ViewPublicOnly
)

// 画面遷移先
const (
	LoginPath    = "/login"
	ProductsPath = "/products"
)

// RouteDecision は画面表示の判定結果。
// Loadingの間は表示もリダイレクトも行わない。
type RouteDecision struct {
	Loading    bool
	Render     bool
	RedirectTo string
}

// Guard は現在のセッション状態から画面を表示してよいかを判定する。
func (s *Session) Guard(v View) RouteDecision {
	return Decide(s.Snapshot(), v)
}

// Decide はスナップショットに対する画面表示の判定を行う。
func Decide(snap Snapshot, v View) RouteDecision {
	if snap.Loading {
		return RouteDecision{Loading: true}
	}
	switch v {
	case ViewProtected:
		if !snap.IsAuthenticated {
			return RouteDecision{RedirectTo: LoginPath}
		}
	case ViewPublicOnly:
		if snap.IsAuthenticated {
			return RouteDecision{RedirectTo: ProductsPath}
		}
	}
	return RouteDecision{Render: true}
}
