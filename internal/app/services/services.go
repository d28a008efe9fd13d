package services

// Services defined in this package:
// - AuthService: signup, login, token refresh and rotation, logout,
//   email verification, password reset and profile retrieval
