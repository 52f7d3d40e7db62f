package auth

// Route 表示导航目标。
type Route string

// RouteEntry 是未认证会话统一重定向的入口视图。
const RouteEntry Route = "/login"

// Allowed 判断当前会话状态是否允许进入受保护视图。
// 纯函数，只读取已计算的会话状态，不做任何 IO。
func Allowed(state State) bool {
	return state.Authenticated()
}

// Resolve 返回应当呈现的目标：未认证一律重定向到入口视图。
func Resolve(state State, target Route) Route {
	if Allowed(state) {
		return target
	}
	return RouteEntry
}
